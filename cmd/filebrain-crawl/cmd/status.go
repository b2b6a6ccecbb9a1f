package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Hamza5/file-brain/internal/crawl"
)

// pollInterval is how often the status view re-reads the manager's
// progress snapshot. heartbeatAfter forces a redraw after 30s of no
// observed change, so the view doesn't look frozen during a long quiet
// phase.
const (
	pollInterval   = 250 * time.Millisecond
	heartbeatAfter = 30 * time.Second
)

func newStatusCmd() *cobra.Command {
	var once bool
	var jsonOutput bool

	c := &cobra.Command{
		Use:   "status",
		Short: "Show the crawl progress/status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if once || jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
				return printOnce(cmd.Context(), cmd.OutOrStdout())
			}
			return runStatusTUI(cmd.Context())
		},
	}

	c.Flags().BoolVar(&once, "once", false, "Print one snapshot and exit, even on a TTY")
	c.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON snapshot and exit")
	return c
}

func printOnce(ctx context.Context, out io.Writer) error {
	snap := current.manager.Snapshot()
	return json.NewEncoder(out).Encode(snapshotJSON(snap))
}

// snapshotJSON projects crawl.Snapshot onto the CLI's stable JSON wire
// shape, independent of the Go field names and ordering.
func snapshotJSON(s crawl.Snapshot) map[string]any {
	m := map[string]any{
		"running":               s.Running,
		"job_type":              nullableString(s.JobType),
		"current_phase":         string(s.CurrentPhase),
		"start_time_ms":         s.StartTimeMs,
		"elapsed_seconds":       s.ElapsedSeconds,
		"discovery_progress":    s.DiscoveryProgress,
		"indexing_progress":     s.IndexingProgress,
		"verification_progress": s.VerificationProgress,
		"files_discovered":      s.FilesDiscovered,
		"files_indexed":         s.FilesIndexed,
		"files_skipped":         s.FilesSkipped,
		"files_error":           s.FilesError,
		"orphan_count":          s.OrphanCount,
		"queue_size":            s.QueueSize,
		"monitoring_active":     s.MonitoringActive,
	}
	if s.EstimatedCompletionMs != nil {
		m["estimated_completion_ms"] = *s.EstimatedCompletionMs
	} else {
		m["estimated_completion_ms"] = nil
	}
	return m
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- Bubble Tea status view ---

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(14)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type statusModel struct {
	snap    crawl.Snapshot
	discBar progress.Model
	idxBar  progress.Model
	last    time.Time
}

func newStatusModel() statusModel {
	return statusModel{
		discBar: progress.New(progress.WithDefaultGradient()),
		idxBar:  progress.New(progress.WithDefaultGradient()),
		last:    time.Now(),
	}
}

func (m statusModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		next := current.manager.Snapshot()
		if !reflect.DeepEqual(next, m.snap) || time.Since(m.last) > heartbeatAfter {
			m.snap = next
			m.last = time.Now()
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m statusModel) View() string {
	s := m.snap
	out := fmt.Sprintf("%s %s\n", labelStyle.Render("phase"), s.CurrentPhase)
	out += fmt.Sprintf("%s %s\n", labelStyle.Render("discovery"), m.discBar.ViewAs(float64(s.DiscoveryProgress)/100))
	out += fmt.Sprintf("%s %s\n", labelStyle.Render("indexing"), m.idxBar.ViewAs(float64(s.IndexingProgress)/100))
	out += fmt.Sprintf("%s discovered=%d indexed=%d skipped=%d errors=%d orphans=%d queue=%d\n",
		labelStyle.Render("files"), s.FilesDiscovered, s.FilesIndexed, s.FilesSkipped, s.FilesError, s.OrphanCount, s.QueueSize)
	out += dimStyle.Render(fmt.Sprintf("monitoring=%v elapsed=%.0fs  (q to quit)", s.MonitoringActive, s.ElapsedSeconds))
	return out
}

func runStatusTUI(ctx context.Context) error {
	p := tea.NewProgram(newStatusModel())
	_, err := p.Run()
	return err
}
