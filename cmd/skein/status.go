package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/orchestrator"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fleet status",
	Long: `Query a running fleet's status server and display agent metrics,
orchestration counters, routing statistics and store statistics.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Status server address (default: from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr = cfg.Server.Addr
	}

	status, err := fetchStatus(addr)
	if err != nil {
		fmt.Printf("No fleet reachable at %s. Run 'skein serve' to start one.\n", addr)
		return nil
	}

	displayStatus(status)
	return nil
}

func fetchStatus(addr string) (*orchestrator.FleetStatus, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status server returned %d", resp.StatusCode)
	}

	var status orchestrator.FleetStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func displayStatus(status *orchestrator.FleetStatus) {
	fmt.Printf("Fleet: %d agents\n\n", status.TotalAgents)

	ids := make([]string, 0, len(status.Agents))
	for id := range status.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := status.Agents[id]
		line := fmt.Sprintf("  %-24s %s completed, %s failed",
			id,
			color.GreenString("%d", m.TasksCompleted),
			failedString(m.TasksFailed))
		if m.TotalCost > 0 {
			line += fmt.Sprintf(", $%.4f", m.TotalCost)
		}
		if m.PatternsLearned > 0 {
			line += fmt.Sprintf(", %d patterns", m.PatternsLearned)
		}
		fmt.Println(line)
	}

	o := status.Orchestration
	fmt.Printf("\nOrchestration:\n")
	fmt.Printf("  Workflows executed: %d\n", o.WorkflowsExecuted)
	fmt.Printf("  Agents used:        %d\n", o.TotalAgentsUsed)
	fmt.Printf("  Total cost:         $%.4f\n", o.TotalCost)

	fmt.Printf("\nRouting: %d calls", status.Routing.TotalCalls)
	if !status.Routing.Enabled {
		fmt.Printf(" %s", color.YellowString("(tier routing disabled)"))
	}
	fmt.Println()
	for model, usage := range status.Routing.ByModel {
		fmt.Printf("  %-44s %d calls, $%.4f\n", model, usage.Calls, usage.Cost)
	}

	fmt.Printf("\nStore: %d entries across %d partitions\n",
		status.Memory.EntryCount, len(status.Memory.Partitions))
}

func failedString(n int64) string {
	if n == 0 {
		return color.GreenString("0")
	}
	return color.RedString("%d", n)
}
