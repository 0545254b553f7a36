// Package config handles configuration loading and management for hive.
// It supports XDG config paths, project-level overrides, environment
// variables, and hot reload of pool scaling bounds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/hive/pkg/models"
)

// Config holds all configuration for hive.
type Config struct {
	Engine EngineConfig      `mapstructure:"engine"`
	Server ServerConfig      `mapstructure:"server"`
	Log    LogConfig         `mapstructure:"log"`
	Pools  []models.PoolSpec `mapstructure:"pools"`
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	// MaxConcurrency is the global ceiling on concurrently executing
	// microtasks, across all pools.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// Timeout is the per-microtask execution deadline. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
	// MergePolicy selects the aggregate success policy:
	// all_succeed, majority, or best_effort.
	MergePolicy string `mapstructure:"merge_policy"`
	// Tracing enables the stdout span exporter.
	Tracing bool `mapstructure:"tracing"`
	// DebugLog is the path for the engine's file-backed debug log.
	// Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// ServerConfig holds the HTTP read surface settings.
type ServerConfig struct {
	// Addr is the listen address for /health, /status, /pools, /metrics.
	Addr string `mapstructure:"addr"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (HIVE_*)
// 2. Project config (.hive.yaml in current directory or a parent)
// 3. User config (~/.config/hive/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("HIVE")
	v.AutomaticEnv()
	v.BindEnv("engine.max_concurrency", "HIVE_MAX_CONCURRENCY")
	v.BindEnv("server.addr", "HIVE_SERVER_ADDR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("engine.max_concurrency must be at least 1, got %d", c.Engine.MaxConcurrency)
	}
	seen := make(map[string]bool)
	for _, p := range c.Pools {
		if p.ID == "" {
			return fmt.Errorf("pool spec missing id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pool id %q", p.ID)
		}
		seen[p.ID] = true
		if p.MinSize < 0 || p.MaxSize < p.MinSize {
			return fmt.Errorf("pool %s: invalid bounds [%d, %d]", p.ID, p.MinSize, p.MaxSize)
		}
		if p.InitialSize < p.MinSize || p.InitialSize > p.MaxSize {
			return fmt.Errorf("pool %s: initial size %d outside bounds [%d, %d]",
				p.ID, p.InitialSize, p.MinSize, p.MaxSize)
		}
		if len(p.Specializations) == 0 {
			return fmt.Errorf("pool %s: at least one specialization required", p.ID)
		}
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_concurrency", 10)
	v.SetDefault("engine.timeout", "30s")
	v.SetDefault("engine.merge_policy", "all_succeed")
	v.SetDefault("engine.tracing", false)
	v.SetDefault("engine.debug_log", "")

	v.SetDefault("server.addr", ":8090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("pools", []map[string]any{
		{
			"id":              "transform-pool",
			"type":            "transform",
			"specializations": []string{"transform"},
			"min_size":        1,
			"max_size":        16,
			"initial_size":    4,
			"max_concurrency": 4,
		},
		{
			"id":              "digest-pool",
			"type":            "digest",
			"specializations": []string{"digest"},
			"min_size":        1,
			"max_size":        16,
			"initial_size":    4,
			"max_concurrency": 4,
		},
	})
}

// getUserConfigDir returns the XDG config directory for hive.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hive")
	}
	return filepath.Join(home, ".config", "hive")
}

// findProjectConfig searches for .hive.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".hive.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
