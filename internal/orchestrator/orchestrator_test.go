package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-jmeter-runner/internal/monitoring"
	"github.com/randomizedcoder/go-jmeter-runner/internal/supervisor"
	"github.com/randomizedcoder/go-jmeter-runner/internal/testconfig"
	"github.com/randomizedcoder/go-jmeter-runner/internal/upload"
)

// =============================================================================
// Tests: Run
// =============================================================================

func TestRun_Passes(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.plan(t, "nested/b.jmx", passPlan)
	env.plan(t, "notes.txt", "ignored")

	reg := prometheus.NewRegistry()
	o := env.orchestrator(Options{Registry: reg})
	v, err := o.Run(testContext(t))
	if err != nil {
		t.Fatalf("Run() error = %v\noutput:\n%s", err, env.out)
	}

	if !v.Passed || v.LocalFailure {
		t.Errorf("verdict = %+v, want passed", v)
	}
	if v.FilesScanned != 2 || v.Success != 4 || v.Failure != 0 {
		t.Errorf("scanned=%d success=%d failure=%d, want 2/4/0", v.FilesScanned, v.Success, v.Failure)
	}

	side, err := testconfig.Load(env.cfg.TestConfigFile)
	if err != nil {
		t.Fatalf("side-file: %v", err)
	}
	want := []string{
		filepath.Join(env.cfg.ResultsDirectory, "a.csv"),
		filepath.Join(env.cfg.ResultsDirectory, "b.csv"),
	}
	if len(side.ResultFilesLocations) != len(want) {
		t.Fatalf("side-file locations = %v, want %v", side.ResultFilesLocations, want)
	}
	for i := range want {
		if side.ResultFilesLocations[i] != want[i] {
			t.Errorf("location[%d] = %q, want %q", i, side.ResultFilesLocations[i], want[i])
		}
	}
	if !side.ResultsOutputIsCSVFormat {
		t.Error("side-file should record CSV format")
	}

	out := env.out.String()
	for _, s := range []string{
		"P E R F O R M A N C E    T E S T S",
		"Executing test: a.jmx",
		"Completed Test: b.jmx",
		"Result (.jtl) files scanned:",
		"Successful requests:",
		"RESULT: PASSED",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}

	if got := gatherValue(t, reg, "jmeter_runner_process_starts_total"); got != 2 {
		t.Errorf("process_starts_total = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "jmeter_runner_verdict_passed"); got != 1 {
		t.Errorf("verdict_passed = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "jmeter_runner_samples"); got != 2 {
		t.Errorf("samples = %v, want 2", got)
	}

	snapshot, err := os.ReadFile(filepath.Join(env.cfg.LogsDirectory, "runner-metrics.prom"))
	if err != nil {
		t.Fatalf("metrics snapshot: %v", err)
	}
	if !strings.Contains(string(snapshot), "jmeter_runner_process_starts_total 2") {
		t.Errorf("snapshot missing process starts:\n%s", snapshot)
	}

	st := o.Status()
	if st.Phase != PhaseDone || st.Completed != 2 || st.TestFiles != 2 {
		t.Errorf("status = %+v", st)
	}
	if st.Total.Samples != 2 || st.OutputLines == 0 {
		t.Errorf("progress not tracked: %+v", st)
	}
}

func TestRun_SamePlanNameInTwoDirectories(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a/plan.jmx", passPlan)
	env.plan(t, "b/plan.jmx", failPlan)

	v, err := env.orchestrator(Options{}).Run(testContext(t))
	var verdictErr *VerdictError
	if !errors.As(err, &verdictErr) {
		t.Fatalf("Run() error = %v, want *VerdictError\noutput:\n%s", err, env.out)
	}
	if v.FilesScanned != 2 || v.Success != 3 || v.Failure != 1 {
		t.Errorf("scanned=%d success=%d failure=%d, want 2/3/1", v.FilesScanned, v.Success, v.Failure)
	}

	side, err := testconfig.Load(env.cfg.TestConfigFile)
	if err != nil {
		t.Fatalf("side-file: %v", err)
	}
	want := []string{
		filepath.Join(env.cfg.ResultsDirectory, "a_plan.csv"),
		filepath.Join(env.cfg.ResultsDirectory, "b_plan.csv"),
	}
	if strings.Join(side.ResultFilesLocations, "|") != strings.Join(want, "|") {
		t.Errorf("side-file locations = %v, want %v", side.ResultFilesLocations, want)
	}
}

func TestRun_LocalFailure(t *testing.T) {
	tests := []struct {
		name       string
		ignore     bool
		wantPassed bool
	}{
		{"fails", false, false},
		{"ignored", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.plan(t, "a.jmx", failPlan)
			env.cfg.IgnoreResultFailures = tt.ignore

			v, err := env.orchestrator(Options{}).Run(testContext(t))
			if v == nil {
				t.Fatalf("no verdict, err = %v", err)
			}
			if v.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", v.Passed, tt.wantPassed)
			}

			var verr *VerdictError
			if tt.wantPassed {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *VerdictError", err)
			}
			if !strings.Contains(err.Error(), "failed requests have been detected (1 of 2)") {
				t.Errorf("message = %q", err.Error())
			}
			if !strings.Contains(err.Error(), env.cfg.LogsDirectory) {
				t.Errorf("message should name the logs directory: %q", err.Error())
			}
		})
	}
}

func TestRun_Skipped(t *testing.T) {
	t.Run("missing_directory", func(t *testing.T) {
		env := newTestEnv(t)
		v, err := env.orchestrator(Options{}).Run(testContext(t))
		if v != nil || err != nil {
			t.Fatalf("Run() = %v, %v; want nil, nil", v, err)
		}
		out := env.out.String()
		if !strings.Contains(out, "does not exist...") || !strings.Contains(out, "Performance tests are skipped.") {
			t.Errorf("output = %q", out)
		}
		if _, err := os.Stat(env.cfg.TestConfigFile); !os.IsNotExist(err) {
			t.Error("side-file must not be written when skipped")
		}
	})

	t.Run("skip_tests", func(t *testing.T) {
		env := newTestEnv(t)
		env.plan(t, "a.jmx", passPlan)
		env.cfg.SkipTests = true
		v, err := env.orchestrator(Options{}).Run(testContext(t))
		if v != nil || err != nil {
			t.Fatalf("Run() = %v, %v; want nil, nil", v, err)
		}
		if _, err := os.Stat(filepath.Join(env.cfg.ResultsDirectory, "a.csv")); !os.IsNotExist(err) {
			t.Error("no test may run")
		}
	})
}

func TestRun_NoTestFiles(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "readme.md", "")

	v, err := env.orchestrator(Options{}).Run(testContext(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !v.Passed || v.FilesScanned != 0 {
		t.Errorf("verdict = %+v", v)
	}
	side, err := testconfig.Load(env.cfg.TestConfigFile)
	if err != nil {
		t.Fatal(err)
	}
	if side.ResultFilesLocations == nil || len(side.ResultFilesLocations) != 0 {
		t.Errorf("locations = %#v, want empty", side.ResultFilesLocations)
	}
}

func TestRun_ProcessExitError(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", "#exit 3\n"+passPlan)
	env.plan(t, "b.jmx", passPlan)

	perf, srv := newFakePerfana(t)
	env.cfg.Perfana.Enabled = true
	env.cfg.Perfana.URL = srv.URL

	v, err := env.orchestrator(Options{}).Run(testContext(t))
	if v != nil {
		t.Errorf("verdict = %+v, want nil", v)
	}
	var exitErr *ProcessExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ProcessExitError", err)
	}
	if exitErr.ExitCode != 3 || filepath.Base(exitErr.TestFile) != "a.jmx" {
		t.Errorf("exitErr = %+v", exitErr)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.ResultsDirectory, "b.csv")); !os.IsNotExist(err) {
		t.Error("b.jmx must not run after a failure")
	}

	if n := perf.completions(); n != 1 {
		t.Errorf("completion notices = %d, want exactly one", n)
	}
}

func TestRun_StartupError(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.WorkingDirectory = filepath.Join(env.root, "nope")

	_, err := env.orchestrator(Options{}).Run(testContext(t))
	var cfgErr *supervisor.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *supervisor.ConfigurationError", err)
	}
}

func TestRun_Interrupted(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", "#sleep 2\n"+passPlan)
	env.plan(t, "b.jmx", passPlan)

	perf, srv := newFakePerfana(t)
	env.cfg.Perfana.Enabled = true
	env.cfg.Perfana.URL = srv.URL

	ctx, cancel := context.WithCancel(testContext(t))
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err := env.orchestrator(Options{}).Run(ctx)
	if !errors.Is(err, supervisor.ErrInterrupted) {
		t.Fatalf("error = %v, want ErrInterrupted", err)
	}

	if n := perf.completions(); n != 1 {
		t.Errorf("completion notices = %d, want one after an interrupt", n)
	}
}

// =============================================================================
// Tests: Monitoring
// =============================================================================

func TestRun_Monitoring(t *testing.T) {
	tests := []struct {
		name       string
		assert     bool
		body       string
		wantPassed bool
		wantMsg    string
	}{
		{
			name:       "assertions_off",
			assert:     false,
			body:       `{"requirements":{"result":false,"deeplink":"r"}}`,
			wantPassed: true,
			wantMsg:    "Perfana assert results not enabled",
		},
		{
			name:       "assertions_pass",
			assert:     true,
			body:       `{"requirements":{"result":true,"deeplink":"r"}}`,
			wantPassed: true,
			wantMsg:    "All Perfana assertions are OK:",
		},
		{
			name:       "requirements_fail",
			assert:     true,
			body:       `{"requirements":{"result":false,"deeplink":"r"},"benchmarkBaselineTestRun":{"result":true,"deeplink":"b"}}`,
			wantPassed: false,
			wantMsg:    "Requirements failed: r",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.plan(t, "a.jmx", "#sleep 0.1\n"+passPlan)

			perf, srv := newFakePerfana(t)
			perf.benchmarkBody = tt.body
			env.cfg.Perfana.Enabled = true
			env.cfg.Perfana.URL = srv.URL
			env.cfg.Perfana.AssertResults = tt.assert

			reg := prometheus.NewRegistry()
			o := env.orchestrator(Options{Registry: reg})
			v, err := o.Run(testContext(t))
			if v == nil {
				t.Fatalf("no verdict, err = %v", err)
			}
			if v.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", v.Passed, tt.wantPassed)
			}
			if v.LocalFailure {
				t.Error("local results were clean")
			}
			if !strings.Contains(v.Assertions.Message, tt.wantMsg) {
				t.Errorf("assertion message = %q, want %q", v.Assertions.Message, tt.wantMsg)
			}
			if !strings.Contains(env.out.String(), tt.wantMsg) {
				t.Errorf("summary should print the assertion message:\n%s", env.out)
			}

			var verr *VerdictError
			if tt.wantPassed != (err == nil) || (err != nil && !errors.As(err, &verr)) {
				t.Errorf("error = %v", err)
			}

			if n := perf.completions(); n != 1 {
				t.Errorf("completion notices = %d, want 1", n)
			}
			if st := o.Status(); st.SessionState != monitoring.StateStopped || st.Heartbeats < 2 {
				t.Errorf("status = %+v", st)
			}
			if got := gatherValue(t, reg, "jmeter_runner_monitoring_session_state"); got != float64(monitoring.StateStopped) {
				t.Errorf("session_state = %v", got)
			}
		})
	}
}

func TestRun_AssertionRetrievalError(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)

	perf, srv := newFakePerfana(t)
	perf.benchmarkStatus = 404
	env.cfg.Perfana.Enabled = true
	env.cfg.Perfana.URL = srv.URL
	env.cfg.Perfana.AssertResults = true
	env.cfg.Perfana.PollAttempts = 3

	_, err := env.orchestrator(Options{}).Run(testContext(t))
	var rerr *monitoring.AssertionRetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *AssertionRetrievalError", err)
	}
	if rerr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", rerr.Attempts)
	}
	var verr *VerdictError
	if errors.As(err, &verr) {
		t.Error("a retrieval failure is not a test failure")
	}
}

// =============================================================================
// Tests: Output, upload, commands
// =============================================================================

func TestRun_SuppressOutput(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.SuppressJMeterOutput = true

	if _, err := env.orchestrator(Options{}).Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if strings.Contains(env.out.String(), "summary =") {
		t.Error("suppressed output reached stdout")
	}
	data, err := os.ReadFile(filepath.Join(env.cfg.LogsDirectory, outputLogName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "summary =") {
		t.Errorf("output log = %q", data)
	}
}

func TestRun_PreservesSideFileKeys(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	writeFile(t, env.cfg.TestConfigFile, `{"resultFilesLocations":["old.csv"],"resultsOutputIsCSVFormat":false,"someOtherElement":"kept"}`)

	if _, err := env.orchestrator(Options{}).Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	side, err := testconfig.Load(env.cfg.TestConfigFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(side.ResultFilesLocations) != 1 || filepath.Base(side.ResultFilesLocations[0]) != "a.csv" {
		t.Errorf("locations = %v", side.ResultFilesLocations)
	}
	if !side.ResultsOutputIsCSVFormat {
		t.Error("CSV flag not updated")
	}
	if raw, ok := side.Extra("someOtherElement"); !ok || string(raw) != `"kept"` {
		t.Errorf("unknown key lost: %s", raw)
	}
}

type recordingProvider struct {
	paths []string
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Configure(ctx context.Context, s upload.Settings) error { return nil }

func (p *recordingProvider) Upload(ctx context.Context, r io.Reader, size int64, remotePath string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	p.paths = append(p.paths, remotePath)
	return nil
}

func TestRun_UploadsArtifacts(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.Upload.Prefix = "perf/{run_id}"
	env.cfg.SuppressJMeterOutput = true

	p := &recordingProvider{}
	if _, err := env.orchestrator(Options{UploadProvider: p}).Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := strings.Join(p.paths, " ")
	for _, want := range []string{"perf/run-1/a.csv", "perf/run-1/config.json", "perf/run-1/logs/jmeter-output.log", "perf/run-1/logs/runner-metrics.prom"} {
		if !strings.Contains(got, want) {
			t.Errorf("uploads %v missing %q", p.paths, want)
		}
	}
	if !strings.Contains(env.out.String(), "to recording") {
		t.Errorf("output = %s", env.out)
	}
}

func TestRun_Preflight(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.SkipPreflight = false

	if _, err := env.orchestrator(Options{}).Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, env.out)
	}
	if !strings.Contains(env.out.String(), "Preflight checks:") {
		t.Errorf("preflight not printed:\n%s", env.out)
	}

	env = newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.SkipPreflight = false
	env.cfg.JavaRuntime = filepath.Join(env.root, "missing-java")
	_, err := env.orchestrator(Options{}).Run(testContext(t))
	if err == nil || !strings.Contains(err.Error(), "preflight checks failed") {
		t.Errorf("error = %v", err)
	}
}

func TestCommands(t *testing.T) {
	env := newTestEnv(t)
	env.plan(t, "a.jmx", passPlan)
	env.cfg.Properties = map[string]string{"threads": "5"}

	cmds, err := env.orchestrator(Options{}).Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 {
		t.Fatalf("cmds = %v", cmds)
	}
	for _, want := range []string{"-Xms512M", "-jar", "ApacheJMeter.jar", "-n -t", "a.jmx", "-Jthreads=5"} {
		if !strings.Contains(cmds[0], want) {
			t.Errorf("command %q missing %q", cmds[0], want)
		}
	}
	if _, err := os.Stat(env.cfg.ResultsDirectory); !os.IsNotExist(err) {
		t.Error("Commands must not touch the filesystem")
	}
}

func TestGUI(t *testing.T) {
	env := newTestEnv(t)
	plan := env.plan(t, "a.jmx", passPlan)

	if err := env.orchestrator(Options{}).GUI(testContext(t), plan); err != nil {
		t.Fatalf("GUI() error = %v", err)
	}
	if !strings.Contains(env.out.String(), "S T A R T I N G    J M E T E R    G U I") {
		t.Errorf("output = %s", env.out)
	}

	env.cfg.RunInBackground = true
	if err := env.orchestrator(Options{}).GUI(testContext(t), ""); err != nil {
		t.Fatalf("background GUI() error = %v", err)
	}
}

// =============================================================================
// Tests: CheckResults
// =============================================================================

func TestCheckResults(t *testing.T) {
	env := newTestEnv(t)
	good := filepath.Join(env.root, "good.csv")
	bad := filepath.Join(env.root, "bad.csv")
	writeFile(t, good, passPlan)
	writeFile(t, bad, failPlan)

	side := testconfig.New(true)
	side.ResultFilesLocations = []string{good, bad, filepath.Join(env.root, "missing.csv")}
	writeFile(t, env.cfg.TestConfigFile, "")
	if err := side.Save(env.cfg.TestConfigFile); err != nil {
		t.Fatal(err)
	}

	v, err := env.orchestrator(Options{}).CheckResults(testContext(t))
	var verr *VerdictError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *VerdictError", err)
	}
	if v.FilesScanned != 3 || len(v.FilesSkipped) != 1 {
		t.Errorf("scanned=%d skipped=%v", v.FilesScanned, v.FilesSkipped)
	}
	if v.Success != 3 || v.Failure != 1 {
		t.Errorf("success=%d failure=%d, want 3/1", v.Success, v.Failure)
	}
	if v.Assertions.Message != "" {
		t.Errorf("no assertions in the verification phase: %q", v.Assertions.Message)
	}
}

func TestCheckResults_NotScanned(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ScanResultsForSuccessfulRequests = false
	env.cfg.ScanResultsForFailedRequests = false
	env.cfg.IgnoreResultFailures = true

	// No side-file: it must not be read.
	v, err := env.orchestrator(Options{}).CheckResults(testContext(t))
	if err != nil {
		t.Fatalf("CheckResults() error = %v", err)
	}
	if v.Scanned || !v.Passed {
		t.Errorf("verdict = %+v", v)
	}
	if !strings.Contains(env.out.String(), "have not been scanned") {
		t.Errorf("output = %s", env.out)
	}
}

func TestCheckResults_ForcedFailureScan(t *testing.T) {
	env := newTestEnv(t)
	bad := filepath.Join(env.root, "bad.csv")
	writeFile(t, bad, failPlan)
	side := testconfig.New(true)
	side.ResultFilesLocations = []string{bad}
	writeFile(t, env.cfg.TestConfigFile, "")
	if err := side.Save(env.cfg.TestConfigFile); err != nil {
		t.Fatal(err)
	}

	env.cfg.ScanResultsForFailedRequests = false
	v, err := env.orchestrator(Options{}).CheckResults(testContext(t))
	if err == nil || v.Failure != 1 {
		t.Errorf("failures must be scanned when they are not ignored: v=%+v err=%v", v, err)
	}
}

func TestCheckResults_MissingSideFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orchestrator(Options{}).CheckResults(testContext(t))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not exist", err)
	}
}

func TestRun_MetricsServer(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.MetricsAddr = "127.0.0.1:0"
	env.plan(t, "a.jmx", "#sleep 1\n"+passPlan)

	o := env.orchestrator(Options{Registry: prometheus.NewRegistry()})

	type probe struct {
		status Status
		err    error
	}
	probed := make(chan probe, 1)
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for o.Status().PID == 0 {
			if time.Now().After(deadline) {
				probed <- probe{err: errors.New("process never started")}
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		resp, err := http.Get("http://" + o.metricsServer.Addr() + "/status")
		if err != nil {
			probed <- probe{err: err}
			return
		}
		defer resp.Body.Close()
		var s Status
		err = json.NewDecoder(resp.Body).Decode(&s)
		probed <- probe{status: s, err: err}
	}()

	if _, err := o.Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	p := <-probed
	if p.err != nil {
		t.Fatalf("GET /status: %v", p.err)
	}
	if p.status.Phase != PhaseRunning || p.status.TestFiles != 1 {
		t.Errorf("status = %+v, want running with one test file", p.status)
	}
	if !strings.HasSuffix(p.status.CurrentTest, "a.jmx") {
		t.Errorf("CurrentTest = %q", p.status.CurrentTest)
	}
}
