package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "skein",
	Short: "Agent fleet orchestration",
	Long: `Skein coordinates a fleet of reasoning agents through composable
execution patterns: single dispatch, sequential pipelines, bounded
parallel fan-out, and fan-out/fan-in with synthesis.

Agents share state through a TTL'd coordination store and are declared
in a YAML manifest that can be reloaded while the fleet runs.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: XDG config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(fanoutCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
