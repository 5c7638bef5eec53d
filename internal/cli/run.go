package cli

import (
	"bytes"
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-jmeter-runner/internal/orchestrator"
	"github.com/randomizedcoder/go-jmeter-runner/internal/tui"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the JMeter test plans and check the results",
		Long: `Run every test plan under --test-dir that matches --include and not --exclude,
one after another. While they run a Perfana test run is kept alive (--perfana).
Afterwards the result file locations are written to --test-config-file, the
artifacts are uploaded (--upload-provider) and the verdict is printed.`,
		Example: `  go-jmeter-runner run --test-dir src/test/jmeter --jmeter-home /opt/jmeter
  go-jmeter-runner run --config runner.yaml --perfana --perfana-assert
  go-jmeter-runner run --tui --metrics 0.0.0.0:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.TUI {
				return a.runWithDashboard(cmd.Context())
			}
			_, err := a.orchestrator(a.stdout).Run(cmd.Context())
			return err
		},
	}
}

// runWithDashboard runs the tests while the dashboard owns the terminal.
// JMeter output goes to the logs directory and the summary is printed once
// the dashboard has exited.
func (a *app) runWithDashboard(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.cfg.SuppressJMeterOutput = true

	var summary bytes.Buffer
	orch := a.orchestrator(&summary)

	p := tea.NewProgram(tui.New(tui.Config{
		Application: a.cfg.Perfana.Application,
		TestRunID:   a.cfg.Perfana.TestRunID,
		MetricsAddr: a.cfg.MetricsAddr,
		Source:      orch,
		OnQuit:      cancel,
	}), tea.WithAltScreen(), tea.WithOutput(a.stdout))

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx)
		tui.SendStatus(p, orch.Status())
		tui.SendQuit(p)
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		a.logger.Warn("dashboard_failed", "error", err)
	}
	// The run may still be stopping, e.g. polling assertions after a quit.
	err := <-done

	_, _ = summary.WriteTo(a.stdout)
	return err
}

var _ tui.StatusSource = (*orchestrator.Orchestrator)(nil)
