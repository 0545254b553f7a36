package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PoolSizes maps pool IDs to their configured initial sizes.
type PoolSizes map[string]int

// WatchPoolSizes watches a config file and invokes onChange with the new
// pool sizes whenever the file is rewritten. The serve loop wires this to
// PoolManager.ScalePool so operators can resize pools by editing config,
// without restarting the process.
func WatchPoolSizes(path string, logger *slog.Logger, onChange func(PoolSizes)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config for watch: %w", err)
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Warn("config reload ignored", "path", ev.Name, "error", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Warn("config reload ignored", "path", ev.Name, "error", err)
			return
		}

		sizes := make(PoolSizes, len(cfg.Pools))
		for _, p := range cfg.Pools {
			sizes[p.ID] = p.InitialSize
		}
		logger.Info("config changed, applying pool sizes", "path", ev.Name, "pools", len(sizes))
		onChange(sizes)
	})
	v.WatchConfig()

	return nil
}
