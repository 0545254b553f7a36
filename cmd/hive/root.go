package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hive",
	Short: "Parallel task-orchestration engine",
	Long: `Hive splits a submitted task into independent microtasks, routes each
to a capable, least-loaded worker drawn from named agent pools, executes
them in concurrency-bounded chunks, and merges every outcome (failures
included) into one final result.

Core capabilities:
- Deterministic complexity-driven task decomposition
- Least-loaded capability-aware assignment across resizable pools
- A single global concurrency ceiling spanning all pools
- Partial-failure tolerance with per-microtask accounting
- A read-only HTTP surface for pool stats and run history`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(poolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
