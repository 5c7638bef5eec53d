package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-jmeter-runner/internal/orchestrator"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries an updated run status.
type StatusMsg struct {
	Status orchestrator.Status
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// StatusSource provides run status snapshots.
type StatusSource interface {
	Status() orchestrator.Status
}

// Config holds TUI configuration.
type Config struct {
	Application string
	TestRunID   string
	MetricsAddr string
	Source      StatusSource

	// OnQuit is called when the user quits, typically to cancel the run.
	OnQuit func()
}

// Model represents the TUI state.
type Model struct {
	application string
	testRunID   string
	metricsAddr string

	status     orchestrator.Status
	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	source StatusSource
	onQuit func()

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		application: cfg.Application,
		testRunID:   cfg.TestRunID,
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		onQuit:      cfg.OnQuit,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			m.status = m.source.Status()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatusMsg:
		m.status = msg.Status
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started, falling back to the
// dashboard's own start before the first status arrives.
func (m Model) Elapsed() time.Duration {
	if e := m.status.Elapsed(); e > 0 {
		return e
	}
	return time.Since(m.startTime)
}

// TestProgress returns completed test files as a fraction (0.0 to 1.0).
func (m Model) TestProgress() float64 {
	if m.status.TestFiles == 0 {
		return 0
	}
	return float64(m.status.Completed) / float64(m.status.TestFiles)
}

// TimeProgress returns elapsed time against the planned ramp-up plus
// constant load, capped at 1. Zero when no duration is planned.
func (m Model) TimeProgress() float64 {
	if m.status.Planned <= 0 {
		return 0
	}
	p := float64(m.Elapsed()) / float64(m.status.Planned)
	if p > 1 {
		return 1
	}
	return p
}

// ErrorRate returns the cumulative error fraction from the summariser.
func (m Model) ErrorRate() float64 {
	if m.status.Total.Samples == 0 {
		return 0
	}
	return float64(m.status.Total.Errors) / float64(m.status.Total.Samples)
}

// Done reports whether the run has reached a verdict.
func (m Model) Done() bool {
	return m.status.Phase == orchestrator.PhaseDone
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStatus pushes a status update to the TUI.
func SendStatus(p *tea.Program, status orchestrator.Status) {
	if p != nil {
		p.Send(StatusMsg{Status: status})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// formatPercent formats a fraction as a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
