// Package cli wires the configuration, logging and the run coordinator into
// the go-jmeter-runner command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-jmeter-runner/internal/config"
	"github.com/randomizedcoder/go-jmeter-runner/internal/logging"
	"github.com/randomizedcoder/go-jmeter-runner/internal/orchestrator"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitError      = 1 // infrastructure or configuration problem
	ExitTestFailed = 2 // the run completed and the verdict is failed
)

// app is the state shared by the commands of one invocation.
type app struct {
	version string
	stdout  io.Writer
	stderr  io.Writer

	cfg        *config.Config
	configFile string
	envFile    string

	logger *slog.Logger
}

// NewRootCommand builds the command tree. Output goes to stdout; cobra's own
// messages go to stderr.
func NewRootCommand(version string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		version: version,
		stdout:  stdout,
		stderr:  stderr,
		cfg:     config.DefaultConfig(),
	}

	root := &cobra.Command{
		Use:   "go-jmeter-runner",
		Short: "Run JMeter load tests and decide a pass/fail verdict",
		Long: `go-jmeter-runner runs JMeter test plans in non-GUI mode, keeps a Perfana
test run alive while they execute, scans the result files for failed requests
and combines that with the Perfana assertions into a single verdict.

Exit codes: 0 passed, 1 error, 2 test failed.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	fs := root.PersistentFlags()
	config.BindFlags(fs, a.cfg)
	fs.StringVar(&a.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&a.envFile, "env-file", "", "dotenv file with PERFANA_*, UPLOAD_* and JMETER_HOME variables")

	root.AddCommand(
		a.runCommand(),
		a.resultsCommand(),
		a.guiCommand(),
		a.printCmdCommand(),
		a.versionCommand(),
	)
	return root
}

// setup loads and validates the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.Load(a.cfg, cmd.Flags(), config.Sources{
		ConfigFile: a.configFile,
		EnvFile:    a.envFile,
	}); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := config.Validate(a.cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if a.cfg.TUI && cmd.Name() == "run" {
		a.logger = logging.Discard()
	} else {
		a.logger = logging.NewLogger(a.cfg.LogFormat, a.cfg.LogLevel, a.cfg.Verbose)
	}
	logging.SetDefault(a.logger)
	return nil
}

func (a *app) orchestrator(out io.Writer) *orchestrator.Orchestrator {
	return orchestrator.New(a.cfg, a.logger, orchestrator.Options{
		Version: a.version,
		Out:     out,
	})
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(version, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var verdictErr *orchestrator.VerdictError
	if errors.As(err, &verdictErr) {
		return ExitTestFailed
	}
	return ExitError
}
