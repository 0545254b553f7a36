package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history",
	Long: `Display totals and the most recent orchestration runs from the local
history database.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := state.DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history yet. Run 'hive submit <payload>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	totals, err := db.RunTotals()
	if err != nil {
		return fmt.Errorf("read totals: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Runs: %d", totals.Runs)
	fmt.Printf("  (")
	color.New(color.FgGreen).Printf("%d ok", totals.Succeeded)
	fmt.Printf(" / ")
	color.New(color.FgRed).Printf("%d failed", totals.Failed)
	fmt.Println(")")

	runs, err := db.RecentRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("read recent runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	fmt.Println()
	for _, r := range runs {
		marker := color.GreenString("ok    ")
		if !r.Success {
			marker = color.RedString("failed")
		}
		fmt.Printf("%s  %s  %s/%s  %d/%d microtasks  %dms  %s\n",
			marker, r.TaskID, r.TaskType, r.Complexity,
			r.Succeeded, r.Succeeded+r.Failed, r.DurationMS,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
