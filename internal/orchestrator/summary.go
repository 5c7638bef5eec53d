package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const lineSeparator = "-------------------------------------------------------"

type summaryStyles struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	r := lipgloss.NewRenderer(w)
	return summaryStyles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label: r.NewStyle().Width(30),
		ok:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		fail:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
	}
}

// printBanner prints the phase banner.
func printBanner(w io.Writer, title string) {
	st := newSummaryStyles(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, lineSeparator)
	fmt.Fprintln(w, st.title.Render(title))
	fmt.Fprintln(w, lineSeparator)
}

// PrintVerdict prints the performance test results block.
func PrintVerdict(w io.Writer, v *Verdict) {
	st := newSummaryStyles(w)
	row := func(label string, value any) {
		fmt.Fprintf(w, "%s%v\n", st.label.Render(label), value)
	}

	fmt.Fprintln(w)
	if !v.Scanned {
		fmt.Fprintln(w, "Results of Performance Test(s) have not been scanned.")
	} else {
		fmt.Fprintln(w, st.title.Render("Performance Test Results"))
		fmt.Fprintln(w)
		row("Result (.jtl) files scanned:", v.FilesScanned)
		row("Successful requests:", v.Success)
		row("Failed requests:", v.Failure)
		if v.Success+v.Failure > 0 {
			row("Failure rate:", v.FailurePercent.StringFixed(2)+"%")
		}
		if len(v.FilesSkipped) > 0 {
			row("Unreadable files:", len(v.FilesSkipped))
		}
		if v.Latency.Count > 0 {
			row("Response time p50/p95/p99:", fmt.Sprintf("%s / %s / %s",
				v.Latency.P50, v.Latency.P95, v.Latency.P99))
		}
	}

	if v.Assertions.Message != "" {
		fmt.Fprintln(w)
		style := st.muted
		if v.Assertions.Enabled {
			style = st.ok
			if v.Assertions.Failed() {
				style = st.fail
			}
		}
		fmt.Fprintln(w, style.Render(v.Assertions.Message))
	}

	fmt.Fprintln(w)
	if v.Passed {
		fmt.Fprintln(w, st.ok.Render("RESULT: PASSED"))
	} else {
		fmt.Fprintln(w, st.fail.Render("RESULT: FAILED"))
	}
	fmt.Fprintln(w)
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}
