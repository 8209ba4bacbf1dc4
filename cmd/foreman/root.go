package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDB     string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Project planning and execution orchestrator",
	Long: `Foreman breaks a project's goals into a dependency graph of tasks,
dispatches ready tasks to agents under a concurrency limit, watches
progress on a schedule and replans around blockers.

Typical flow:
  foreman create -f project.yaml --plan
  foreman run <project-id>
  foreman status <project-id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Load configuration from this file only")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides storage.path)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Write the debug log to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(replanCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
