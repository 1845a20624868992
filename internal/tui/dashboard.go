// Package tui implements the live fleet dashboard shown by the watch
// command. It polls a running status server and renders agent metrics,
// orchestration counters and routing statistics.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skein-dev/skein/internal/orchestrator"
)

// pollInterval is how often the dashboard refreshes fleet status.
const pollInterval = 2 * time.Second

// statusMsg carries a freshly fetched fleet status.
type statusMsg struct {
	status *orchestrator.FleetStatus
}

// statusErrMsg signals a failed status fetch. The dashboard keeps the
// last good status on screen and shows the error in the footer.
type statusErrMsg struct {
	err error
}

// tickMsg triggers the next poll.
type tickMsg time.Time

// Dashboard is the bubbletea model for the watch command.
type Dashboard struct {
	addr   string
	client *http.Client

	status    *orchestrator.FleetStatus
	fetchErr  error
	lastFetch time.Time
	width     int
	height    int

	// Styles
	titleStyle   lipgloss.Style
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	borderStyle  lipgloss.Style
}

// NewDashboard creates a dashboard polling the given status server address.
func NewDashboard(addr string) *Dashboard {
	return &Dashboard{
		addr:   addr,
		client: &http.Client{Timeout: 5 * time.Second},

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(22),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// Init starts the first fetch and the poll timer.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.fetchStatus(), tick())
}

// Update handles messages.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		case "r":
			return d, d.fetchStatus()
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height

	case statusMsg:
		d.status = msg.status
		d.fetchErr = nil
		d.lastFetch = time.Now()

	case statusErrMsg:
		d.fetchErr = msg.err

	case tickMsg:
		return d, tea.Batch(d.fetchStatus(), tick())
	}

	return d, nil
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.titleStyle.Render(fmt.Sprintf("Fleet Dashboard  %s", d.addr)))
	b.WriteString("\n\n")

	if d.status == nil {
		if d.fetchErr != nil {
			b.WriteString(d.errorStyle.Render(fmt.Sprintf("  Cannot reach fleet: %v", d.fetchErr)))
			b.WriteString("\n")
			b.WriteString(d.dimStyle.Render("  Run 'skein serve' to start one."))
		} else {
			b.WriteString(d.dimStyle.Render("  Connecting..."))
		}
		b.WriteString("\n\n")
		b.WriteString(d.renderFooter())
		return b.String()
	}

	b.WriteString(d.borderStyle.Render(d.renderAgents()))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		d.borderStyle.Render(d.renderOrchestration()),
		" ",
		d.borderStyle.Render(d.renderRouting()),
		" ",
		d.borderStyle.Render(d.renderMemory()),
	))
	b.WriteString("\n")
	b.WriteString(d.renderFooter())

	return b.String()
}

// renderAgents renders the per-agent metrics table.
func (d *Dashboard) renderAgents() string {
	var b strings.Builder
	b.WriteString(d.headerStyle.Render(fmt.Sprintf("Agents (%d)", d.status.TotalAgents)))
	b.WriteString("\n")

	if len(d.status.Agents) == 0 {
		b.WriteString(d.dimStyle.Render("  no agents registered"))
		return b.String()
	}

	ids := make([]string, 0, len(d.status.Agents))
	for id := range d.status.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := d.status.Agents[id]
		failed := d.successStyle.Render("0")
		if m.TasksFailed > 0 {
			failed = d.errorStyle.Render(fmt.Sprintf("%d", m.TasksFailed))
		}
		line := fmt.Sprintf("  %-24s %s done  %s failed",
			id,
			d.successStyle.Render(fmt.Sprintf("%d", m.TasksCompleted)),
			failed)
		if m.TotalCost > 0 {
			line += d.dimStyle.Render(fmt.Sprintf("  $%.4f", m.TotalCost))
		}
		if m.PatternsLearned > 0 {
			line += d.dimStyle.Render(fmt.Sprintf("  %d patterns", m.PatternsLearned))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderOrchestration renders the orchestrator counters.
func (d *Dashboard) renderOrchestration() string {
	o := d.status.Orchestration
	var b strings.Builder
	b.WriteString(d.headerStyle.Render("Orchestration"))
	b.WriteString("\n")
	b.WriteString(d.renderRow("Workflows:", fmt.Sprintf("%d", o.WorkflowsExecuted)))
	b.WriteString(d.renderRow("Agents used:", fmt.Sprintf("%d", o.TotalAgentsUsed)))
	b.WriteString(d.renderRow("Total cost:", fmt.Sprintf("$%.4f", o.TotalCost)))
	return strings.TrimRight(b.String(), "\n")
}

// renderRouting renders routing statistics per model.
func (d *Dashboard) renderRouting() string {
	r := d.status.Routing
	var b strings.Builder
	header := "Routing"
	if !r.Enabled {
		header += d.dimStyle.Render(" (disabled)")
	}
	b.WriteString(d.headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(d.renderRow("Calls:", fmt.Sprintf("%d", r.TotalCalls)))
	b.WriteString(d.renderRow("Cost:", fmt.Sprintf("$%.4f", r.TotalCost)))

	models := make([]string, 0, len(r.ByModel))
	for m := range r.ByModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		u := r.ByModel[m]
		b.WriteString(d.dimStyle.Render(fmt.Sprintf("  %s: %d calls\n", shortModel(m), u.Calls)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderMemory renders store statistics.
func (d *Dashboard) renderMemory() string {
	m := d.status.Memory
	var b strings.Builder
	b.WriteString(d.headerStyle.Render("Store"))
	b.WriteString("\n")
	b.WriteString(d.renderRow("Entries:", fmt.Sprintf("%d", m.EntryCount)))
	b.WriteString(d.renderRow("Partitions:", fmt.Sprintf("%d", len(m.Partitions))))
	return strings.TrimRight(b.String(), "\n")
}

// renderFooter renders the key hints and staleness line.
func (d *Dashboard) renderFooter() string {
	footer := "q quit  r refresh"
	if !d.lastFetch.IsZero() {
		footer += fmt.Sprintf("  |  updated %s ago", time.Since(d.lastFetch).Round(time.Second))
	}
	if d.fetchErr != nil && d.status != nil {
		footer += "  |  " + d.errorStyle.Render(fmt.Sprintf("poll failed: %v", d.fetchErr))
	}
	return d.dimStyle.Render(footer)
}

// renderRow renders a label-value pair with a trailing newline.
func (d *Dashboard) renderRow(label, value string) string {
	return d.labelStyle.Render(label) + " " + d.valueStyle.Render(value) + "\n"
}

// fetchStatus returns a command that polls the status endpoint.
func (d *Dashboard) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		resp, err := d.client.Get("http://" + d.addr + "/v1/status")
		if err != nil {
			return statusErrMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusErrMsg{err: fmt.Errorf("status server returned %d", resp.StatusCode)}
		}

		var status orchestrator.FleetStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return statusErrMsg{err: fmt.Errorf("decode status: %w", err)}
		}
		return statusMsg{status: &status}
	}
}

// tick schedules the next poll.
func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// shortModel trims the date suffix from a model identifier for display.
func shortModel(model string) string {
	if i := strings.LastIndex(model, "-20"); i > 0 {
		return model[:i]
	}
	return model
}

// Run starts the dashboard and blocks until the user quits.
func Run(addr string) error {
	p := tea.NewProgram(NewDashboard(addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
