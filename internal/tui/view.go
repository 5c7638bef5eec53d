package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-jmeter-runner/internal/orchestrator"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderThroughput(),
	}

	if m.status.Monitoring {
		sections = append(sections, m.renderMonitoring())
	}

	sections = append(sections, m.renderOutput())

	if v := m.status.Verdict; v != nil {
		sections = append(sections, m.renderVerdict(v))
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-jmeter-runner │ %s │ Tests: %d/%d │ Elapsed: %s ",
		PhaseLabel(m.status.Phase),
		m.status.Completed,
		m.status.TestFiles,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	rows := []string{
		sectionHeaderStyle.Render("Progress"),
		RenderProgressBar(m.TestProgress(), barWidth),
	}

	if m.status.Planned > 0 {
		rows = append(rows,
			RenderProgressBar(m.TimeProgress(), barWidth),
			mutedStyle.Render(fmt.Sprintf("planned %s (ramp-up + constant load)", formatDuration(m.status.Planned))),
		)
	}

	var status string
	switch {
	case m.status.CurrentTest != "":
		status = statusInfo.Render(fmt.Sprintf("Running %s (pid %d)", filepath.Base(m.status.CurrentTest), m.status.PID))
	case m.Done():
		status = statusOK.Render("✓ All tests finished")
	default:
		status = dimStyle.Render("Waiting for JMeter...")
	}
	rows = append(rows, status)

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Throughput
// =============================================================================

func (m Model) renderThroughput() string {
	total, interval := m.status.Total, m.status.Interval

	if total.Samples == 0 && interval.Samples == 0 {
		return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left,
			sectionHeaderStyle.Render("Throughput"),
			dimStyle.Render("No summariser output yet."),
		))
	}

	errRate := m.ErrorRate()
	rows := []string{
		sectionHeaderStyle.Render("Throughput"),
		renderStatRow("Samples", formatNumber(total.Samples), formatRate(total.Rate)),
		renderStatRow("Last interval", formatNumber(interval.Samples), formatRate(interval.Rate)),
		RenderKeyValue("Avg / Min / Max", fmt.Sprintf("%s / %s / %s",
			formatMs(total.Avg), formatMs(total.Min), formatMs(total.Max))),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Errors:"),
			GetErrorRateStyle(errRate).Render(fmt.Sprintf("%s (%s)", formatNumber(total.Errors), formatPercent(errRate))),
		),
	}
	if interval.Active > 0 {
		rows = append(rows, RenderKeyValue("Active threads", fmt.Sprintf("%d", interval.Active)))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderStatRow(label, value, rate string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Width(12).Render(value),
		mutedStyle.Render(" ("),
		valueStyle.Render(rate),
		mutedStyle.Render(")"),
	)
}

// =============================================================================
// Monitoring
// =============================================================================

func (m Model) renderMonitoring() string {
	s := m.status

	failures := valueStyle
	if s.HeartbeatFailures > 0 {
		failures = valueWarnStyle
	}

	rows := []string{
		sectionHeaderStyle.Render("Perfana"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Session:"),
			SessionLabel(s.SessionState.String()),
		),
		RenderKeyValue("Test run", m.testRunID),
		RenderKeyValue("Heartbeats", fmt.Sprintf("%d", s.Heartbeats)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Failed:"),
			failures.Render(fmt.Sprintf("%d", s.HeartbeatFailures)),
		),
	}
	if s.PollAttempts > 0 {
		rows = append(rows, RenderKeyValue("Assertion polls", fmt.Sprintf("%d", s.PollAttempts)))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// JMeter Output
// =============================================================================

func (m Model) renderOutput() string {
	s := m.status

	problems := valueStyle
	if s.ProblemLines > 0 {
		problems = valueWarnStyle
	}

	last := s.LastLine
	maxLen := m.width - 6
	if maxLen > 10 && len(last) > maxLen {
		last = last[:maxLen-3] + "..."
	}
	if last == "" {
		last = "-"
	}

	rows := []string{
		sectionHeaderStyle.Render("JMeter Output"),
		RenderKeyValue("Lines", formatNumber(s.OutputLines)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Warnings/errors:"),
			problems.Render(formatNumber(s.ProblemLines)),
		),
		dimStyle.Render(last),
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Verdict
// =============================================================================

func (m Model) renderVerdict(v *orchestrator.Verdict) string {
	rows := []string{sectionHeaderStyle.Render("Result")}

	if v.Scanned {
		rows = append(rows,
			RenderKeyValue("Files scanned", fmt.Sprintf("%d", v.FilesScanned)),
			RenderKeyValue("Successful", formatNumber(v.Success)),
			RenderKeyValue("Failed", formatNumber(v.Failure)),
		)
	}
	if msg := v.Assertions.Message; msg != "" {
		rows = append(rows, mutedStyle.Render(msg))
	}

	if v.Passed {
		rows = append(rows, statusOK.Render("✓ PASSED"))
	} else {
		rows = append(rows, statusError.Render("✗ FAILED"))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"r: refresh",
	}

	var info []string
	if m.application != "" {
		info = append(info, "App: "+m.application)
	}
	if m.metricsAddr != "" {
		info = append(info, "Metrics: http://"+m.metricsAddr+"/metrics")
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := dimStyle.Render(strings.Join(info, " │ "))

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
