package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/state"
	"github.com/ShayCichocki/hive/internal/telemetry"
	"github.com/ShayCichocki/hive/pkg/models"
)

var (
	submitType       string
	submitComplexity string
	submitNoHistory  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <payload>",
	Short: "Submit one task to an in-process engine and print the merged result",
	Long: `Build the engine from config, submit a single task, wait for the merged
result, and record the run in history.

Examples:
  hive submit --type transform --complexity high "the quick brown fox"
  hive submit --type digest --complexity low "payload to hash"`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", "transform", "Capability type the task requires")
	submitCmd.Flags().StringVar(&submitComplexity, "complexity", "medium", "Task complexity: low, medium, or high")
	submitCmd.Flags().BoolVar(&submitNoHistory, "no-history", false, "Do not record the run in history")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	shutdownTracing, err := telemetry.SetupTracing(cfg.Engine.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	metrics := telemetry.NewEngineMetrics(prometheus.NewRegistry())
	orch, err := buildEngine(cfg, metrics)
	if err != nil {
		return err
	}
	defer orch.Stop()

	task := models.Task{
		ID:         ulid.Make().String(),
		Type:       submitType,
		Complexity: models.Complexity(submitComplexity),
		Payload:    args[0],
	}

	result, err := orch.Submit(cmd.Context(), task)
	if err != nil {
		return fmt.Errorf("submit task: %w", err)
	}

	if !submitNoHistory {
		recordRun(task, result)
	}
	printResult(result)

	return shutdownTracing(context.Background())
}

// recordRun persists the merged result; failures here only warn since the
// result has already been produced.
func recordRun(task models.Task, result models.TaskResult) {
	history, err := state.Open(state.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(color.Error, "warning: open run history: %v\n", err)
		return
	}
	defer history.Close()

	rec := state.RunRecord{
		ID:         task.ID,
		TaskID:     task.ID,
		TaskType:   task.Type,
		Complexity: string(task.Complexity),
		Success:    result.Success,
		Succeeded:  result.Metadata.Succeeded,
		Failed:     result.Metadata.Failed,
		DurationMS: result.Metadata.DurationMS,
	}
	if err := history.RecordRun(rec); err != nil {
		fmt.Fprintf(color.Error, "warning: record run: %v\n", err)
	}
}

func printResult(result models.TaskResult) {
	if result.Success {
		color.Green("success (%d/%d microtasks, %dms)",
			result.Metadata.Succeeded,
			result.Metadata.Succeeded+result.Metadata.Failed,
			result.Metadata.DurationMS)
	} else {
		color.Red("failed (%d succeeded, %d failed, %dms)",
			result.Metadata.Succeeded, result.Metadata.Failed, result.Metadata.DurationMS)
		if result.Err != "" {
			color.Red("  %s", result.Err)
		}
	}
	if result.Content != "" {
		fmt.Println(result.Content)
	}
}
