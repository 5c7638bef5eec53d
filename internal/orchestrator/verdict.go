package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/randomizedcoder/go-jmeter-runner/internal/monitoring"
	"github.com/randomizedcoder/go-jmeter-runner/internal/results"
)

// Verdict is the combined outcome of a run: local result files plus the
// remote assertions.
type Verdict struct {
	// Scanned is false when result scanning is switched off.
	Scanned        bool
	FilesScanned   int
	FilesSkipped   []string
	Success        int64
	Failure        int64
	FailurePercent decimal.Decimal
	Latency        results.LatencySummary

	// LocalFailure is set when failures were counted and not ignored.
	LocalFailure bool

	Assertions monitoring.AssertionOutcome

	Passed bool

	// LogsDirectory is reported with a failing verdict.
	LogsDirectory string
}

// VerdictError reports a run whose tests failed. It is distinct from
// infrastructure errors so callers can map it to its own exit code.
type VerdictError struct {
	Verdict *Verdict
}

func (e *VerdictError) Error() string {
	v := e.Verdict
	var reasons []string
	if v.LocalFailure {
		msg := fmt.Sprintf("failed requests have been detected (%d of %d)", v.Failure, v.Success+v.Failure)
		if v.LogsDirectory != "" {
			msg += fmt.Sprintf(", JMeter logs are available at: '%s'", v.LogsDirectory)
		}
		reasons = append(reasons, msg)
	}
	if v.Assertions.Failed() {
		reasons = append(reasons, v.Assertions.Message)
	}
	if len(reasons) == 0 {
		return "test run failed"
	}
	return "test run failed: " + strings.Join(reasons, "; ")
}

// ProcessExitError reports a load generator that exited non-zero.
type ProcessExitError struct {
	TestFile string
	ExitCode int

	// Output holds the last lines the process printed.
	Output []string
}

func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("jmeter exited with code %d running %s", e.ExitCode, e.TestFile)
}

// ScanPolicy builds the effective scan policy. Scanning for failures is
// forced on when failures are not ignored, with a warning.
func ScanPolicy(scanSuccess, scanFailure, ignoreFailures bool, logger *slog.Logger) results.Policy {
	policy, corrected := results.Policy{
		ScanSuccess:    scanSuccess,
		ScanFailure:    scanFailure,
		IgnoreFailures: ignoreFailures,
	}.Normalize()
	if corrected && logger != nil {
		logger.Warn("scan_failures_forced",
			"reason", "scan_results_for_failed_requests=false is incompatible with ignore_result_failures=false",
		)
	}
	return policy
}

// Evaluate scans files with policy and combines the local result with the
// remote assertion outcome.
func Evaluate(files []string, format results.Format, policy results.Policy, outcome monitoring.AssertionOutcome, logger *slog.Logger) *Verdict {
	v := &Verdict{Assertions: outcome}

	if policy.ScanSuccess || policy.ScanFailure {
		report := results.NewScanner(policy, logger).Scan(files, format)
		v.Scanned = true
		v.FilesScanned = report.FilesScanned
		v.FilesSkipped = report.Skipped
		v.Success = report.Success
		v.Failure = report.Failure
		v.FailurePercent = report.FailurePercent()
		v.Latency = report.Latency
		v.LocalFailure = !results.Decide(report.Failure, policy.IgnoreFailures)
	}

	v.Passed = !v.LocalFailure && !outcome.Failed()
	return v
}
