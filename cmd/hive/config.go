package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hive configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		color.Green("wrote %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Printf("engine.max_concurrency: %d\n", cfg.Engine.MaxConcurrency)
		fmt.Printf("engine.timeout:         %s\n", cfg.Engine.Timeout)
		fmt.Printf("engine.merge_policy:    %s\n", cfg.Engine.MergePolicy)
		fmt.Printf("engine.tracing:         %v\n", cfg.Engine.Tracing)
		fmt.Printf("server.addr:            %s\n", cfg.Server.Addr)
		fmt.Printf("log.level:              %s\n", cfg.Log.Level)
		fmt.Printf("log.format:             %s\n", cfg.Log.Format)
		fmt.Printf("pools:\n")
		for _, p := range cfg.Pools {
			fmt.Printf("  %s (%s): size %d in [%d, %d], specializations %v\n",
				p.ID, p.Type, p.InitialSize, p.MinSize, p.MaxSize, p.Specializations)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
