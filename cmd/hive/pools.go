package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/telemetry"
	"github.com/ShayCichocki/hive/pkg/models"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Show the configured agent pools",
	Long: `Build the engine from config and display each pool's status, worker
count, utilization, and execution counters.

For a live view of a running engine, query its /pools endpoint instead.`,
	RunE: runPools,
}

func runPools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	metrics := telemetry.NewEngineMetrics(prometheus.NewRegistry())
	orch, err := buildEngine(cfg, metrics)
	if err != nil {
		return err
	}
	defer orch.Stop()

	renderPoolStats(os.Stdout, orch.PoolStats())
	return nil
}

// renderPoolStats writes one line per pool in the status command's style.
func renderPoolStats(w io.Writer, stats []models.PoolStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No pools configured.")
		return
	}

	for _, st := range stats {
		marker := color.GreenString("%-7s", string(st.Status))
		if st.Status != models.PoolStatusActive {
			marker = color.YellowString("%-7s", string(st.Status))
		}
		fmt.Fprintf(w, "%s  %s  %d agents  %.0f%% utilized  %d ok / %d failed  %.1fms avg\n",
			marker, st.ID, st.ActiveAgents, st.Utilization,
			st.ProcessedTasks, st.FailedTasks, st.AvgResponseTimeMS)
	}
}
