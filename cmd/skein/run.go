package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/fleet"
	"github.com/skein-dev/skein/internal/manifest"
	"github.com/skein-dev/skein/pkg/models"
)

var (
	runManifestPath string
	fanoutWorkers   []string
)

var runCmd = &cobra.Command{
	Use:   "run <agent-id> <instruction>",
	Short: "Dispatch a single task to one agent",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSingle,
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <agent-id,agent-id,...> <instruction>",
	Short: "Run agents sequentially with a shared instruction",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPipeline,
}

var fanoutCmd = &cobra.Command{
	Use:   "fanout <coordinator-id> <instruction>",
	Short: "Decompose, run workers in parallel, synthesize",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFanout,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, pipelineCmd, fanoutCmd} {
		c.Flags().StringVar(&runManifestPath, "manifest", "agents.yaml", "Path to the fleet manifest")
	}
	fanoutCmd.Flags().StringSliceVar(&fanoutWorkers, "workers", nil, "Worker agent ids (required)")
	fanoutCmd.MarkFlagRequired("workers")
}

// dispatchFleet builds a one-shot fleet for a CLI dispatch.
func dispatchFleet() (*fleet.Fleet, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	m, err := manifest.Load(runManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	f, _, err := buildFleet(cfg, m)
	if err != nil {
		return nil, fmt.Errorf("build fleet: %w", err)
	}
	return f, nil
}

func runSingle(cmd *cobra.Command, args []string) error {
	f, err := dispatchFleet()
	if err != nil {
		return err
	}
	defer f.Close()

	task := models.NewTask("execute", map[string]interface{}{
		"instruction": strings.Join(args[1:], " "),
	})

	result, err := f.Execute(context.Background(), args[0], task)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	f, err := dispatchFleet()
	if err != nil {
		return err
	}
	defer f.Close()

	pipeline := strings.Split(args[0], ",")
	results, err := f.ExecutePipeline(context.Background(), pipeline, map[string]interface{}{
		"instruction": strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runFanout(cmd *cobra.Command, args []string) error {
	f, err := dispatchFleet()
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := f.ExecuteFanOutFanIn(context.Background(), args[0], fanoutWorkers, map[string]interface{}{
		"instruction": strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
