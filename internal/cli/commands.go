package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) resultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Check the result files of a previous run",
		Long: `Read the result file locations recorded in --test-config-file by a previous
run, count the successful and failed requests and print the verdict. Fails
when failed requests are found, unless --ignore-failures is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.orchestrator(a.stdout).CheckResults(cmd.Context())
			return err
		},
	}
}

func (a *app) guiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gui [test-file]",
		Short: "Start the JMeter GUI",
		Long: `Start the JMeter GUI, optionally opening a test plan. Waits for the GUI to be
closed unless --run-in-background is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var testFile string
			if len(args) == 1 {
				testFile = args[0]
			}
			return a.orchestrator(a.stdout).GUI(cmd.Context(), testFile)
		},
	}
}

func (a *app) printCmdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print-cmd",
		Short: "Print the JMeter command for each test plan without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			commands, err := a.orchestrator(a.stdout).Commands()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "# JMeter command that would be run for each test plan:")
			fmt.Fprintln(a.stdout)
			for _, c := range commands {
				fmt.Fprintln(a.stdout, c)
			}
			return nil
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "go-jmeter-runner %s\n", a.version)
		},
	}
}
