package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileTemplate is the YAML shape written by WriteDefault. It mirrors the
// mapstructure layout in Config.
type fileTemplate struct {
	Engine struct {
		MaxConcurrency int    `yaml:"max_concurrency"`
		Timeout        string `yaml:"timeout"`
		MergePolicy    string `yaml:"merge_policy"`
		Tracing        bool   `yaml:"tracing"`
		DebugLog       string `yaml:"debug_log"`
	} `yaml:"engine"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Pools []poolTemplate `yaml:"pools"`
}

type poolTemplate struct {
	ID              string   `yaml:"id"`
	Type            string   `yaml:"type"`
	Specializations []string `yaml:"specializations"`
	MinSize         int      `yaml:"min_size"`
	MaxSize         int      `yaml:"max_size"`
	InitialSize     int      `yaml:"initial_size"`
	MaxConcurrency  int      `yaml:"max_concurrency"`
}

// WriteDefault writes the default configuration to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var t fileTemplate
	t.Engine.MaxConcurrency = 10
	t.Engine.Timeout = "30s"
	t.Engine.MergePolicy = "all_succeed"
	t.Server.Addr = ":8090"
	t.Log.Level = "info"
	t.Log.Format = "json"
	t.Pools = []poolTemplate{
		{
			ID:              "transform-pool",
			Type:            "transform",
			Specializations: []string{"transform"},
			MinSize:         1,
			MaxSize:         16,
			InitialSize:     4,
			MaxConcurrency:  4,
		},
		{
			ID:              "digest-pool",
			Type:            "digest",
			Specializations: []string{"digest"},
			MinSize:         1,
			MaxSize:         16,
			InitialSize:     4,
			MaxConcurrency:  4,
		},
	}

	data, err := yaml.Marshal(&t)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
