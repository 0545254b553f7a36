package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/api"
	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/engine"
	"github.com/ShayCichocki/hive/internal/state"
	"github.com/ShayCichocki/hive/internal/telemetry"
)

var serveNoHistory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP read surface",
	Long: `Start the orchestration engine and serve /health, /status, /pools,
and /metrics until interrupted.

Pool sizes hot-reload: editing the user config file while serving resizes
the pools in place (within each pool's declared min/max bounds).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "Disable the SQLite run-history store")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	shutdownTracing, err := telemetry.SetupTracing(cfg.Engine.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	if cfg.Engine.DebugLog != "" {
		debugLogger, err := engine.NewDebugLogger(cfg.Engine.DebugLog)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		engine.SetDebugLogger(debugLogger)
		defer debugLogger.Close()
	}

	metrics := telemetry.NewEngineMetrics(prometheus.DefaultRegisterer)

	orch, err := buildEngine(cfg, metrics)
	if err != nil {
		return err
	}

	var history *state.DB
	if !serveNoHistory {
		history, err = state.Open(state.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer history.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config hot-reload: resize pools when the user config is rewritten.
	if path := config.GetUserConfigPath(); fileExists(path) {
		err := config.WatchPoolSizes(path, logger, func(sizes config.PoolSizes) {
			applyPoolSizes(orch.Pools(), sizes, history, logger)
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	go consumeEvents(orch, logger)

	server := api.NewServer(cfg.Server.Addr, orch, history, logger)
	err = server.Run(ctx)

	orch.Stop()
	if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
		logger.Warn("tracing shutdown", "error", shutdownErr)
	}
	return err
}

// buildEngine assembles the executor registry, pools, and orchestrator
// from config.
func buildEngine(cfg *config.Config, metrics *telemetry.EngineMetrics) (*engine.Orchestrator, error) {
	registry := engine.NewRegistry()

	pools, err := engine.NewPoolManager(registry, metrics, cfg.Pools...)
	if err != nil {
		return nil, fmt.Errorf("build pools: %w", err)
	}

	orch := engine.New(pools,
		engine.WithMaxConcurrency(cfg.Engine.MaxConcurrency),
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithMergePolicy(engine.MergePolicy(cfg.Engine.MergePolicy)),
		engine.WithMetrics(metrics),
	)
	return orch, nil
}

// applyPoolSizes resizes each named pool, recording successful resizes in
// run history.
func applyPoolSizes(pools *engine.PoolManager, sizes config.PoolSizes, history *state.DB, logger *slog.Logger) {
	before := make(map[string]int)
	for _, st := range pools.PoolStats() {
		before[st.ID] = st.ActiveAgents
	}

	for poolID, size := range sizes {
		old, known := before[poolID]
		if !known || old == size {
			continue
		}
		if err := pools.ScalePool(poolID, size); err != nil {
			logger.Warn("scale pool", "pool_id", poolID, "size", size, "error", err)
			continue
		}
		logger.Info("pool resized", "pool_id", poolID, "from", old, "to", size)
		if history != nil {
			if err := history.RecordScaling(state.ScalingEvent{PoolID: poolID, FromSize: old, ToSize: size}); err != nil {
				logger.Warn("record scaling event", "pool_id", poolID, "error", err)
			}
		}
	}
}

// consumeEvents drains the engine event channel into structured logs.
func consumeEvents(orch *engine.Orchestrator, logger *slog.Logger) {
	for ev := range orch.Events() {
		attrs := []any{"type", string(ev.Type)}
		if ev.TaskID != "" {
			attrs = append(attrs, "task_id", ev.TaskID)
		}
		if ev.MicrotaskID != "" {
			attrs = append(attrs, "microtask_id", ev.MicrotaskID)
		}
		if ev.AgentID != "" {
			attrs = append(attrs, "agent_id", ev.AgentID)
		}
		if ev.PoolID != "" {
			attrs = append(attrs, "pool_id", ev.PoolID)
		}
		if ev.Message != "" {
			attrs = append(attrs, "message", ev.Message)
		}

		if ev.Error != nil {
			attrs = append(attrs, "error", ev.Error)
			logger.Warn("engine event", attrs...)
		} else {
			logger.Info("engine event", attrs...)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
