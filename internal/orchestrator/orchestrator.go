// Package orchestrator coordinates one load-test run: it discovers the test
// plans, runs them one after another under a supervisor while a monitoring
// session is kept alive, and decides the verdict from the result files and
// the remote assertions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-jmeter-runner/internal/config"
	"github.com/randomizedcoder/go-jmeter-runner/internal/logging"
	"github.com/randomizedcoder/go-jmeter-runner/internal/metrics"
	"github.com/randomizedcoder/go-jmeter-runner/internal/monitoring"
	"github.com/randomizedcoder/go-jmeter-runner/internal/preflight"
	"github.com/randomizedcoder/go-jmeter-runner/internal/process"
	"github.com/randomizedcoder/go-jmeter-runner/internal/results"
	"github.com/randomizedcoder/go-jmeter-runner/internal/supervisor"
	"github.com/randomizedcoder/go-jmeter-runner/internal/testconfig"
	"github.com/randomizedcoder/go-jmeter-runner/internal/upload"
)

// outputLogName receives the load generator output when it is suppressed.
const outputLogName = "jmeter-output.log"

// Options holds the dependencies of an Orchestrator. All are optional.
type Options struct {
	Version string

	// Out receives the banners and the summary. Default os.Stdout.
	Out io.Writer

	// Registry holds the run metrics. Default: a new registry with the Go
	// and process collectors.
	Registry *prometheus.Registry

	// UploadProvider replaces the provider named in the configuration.
	UploadProvider upload.Provider
}

// Orchestrator coordinates all components for a load-test run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	out     io.Writer
	version string

	registry       *prometheus.Registry
	metrics        *metrics.Collector
	metricsServer  *metrics.Server
	uploadProvider upload.Provider

	status    statusTracker
	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:         opts.Version,
		Application:     cfg.Perfana.Application,
		TestRunID:       cfg.Perfana.TestRunID,
		PlannedDuration: cfg.Perfana.RampUp + cfg.Perfana.ConstantLoad,
	}, registry)

	o := &Orchestrator{
		config:         cfg,
		logger:         logger,
		out:            out,
		version:        opts.Version,
		registry:       registry,
		metrics:        collector,
		uploadProvider: opts.UploadProvider,
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, registry, logger,
			metrics.WithStatus(func() any { return o.Status() }))
	}
	o.status.update(func(s *Status) {
		s.Phase = PhaseStarting
		s.Planned = cfg.Perfana.RampUp + cfg.Perfana.ConstantLoad
		s.Monitoring = cfg.Perfana.Enabled
	})
	return o
}

// Status returns a snapshot of the run.
func (o *Orchestrator) Status() Status {
	return o.status.snapshot()
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Registry returns the registry the run metrics are registered with.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Run executes every discovered test plan and returns the verdict. A
// failing verdict is returned together with a *VerdictError. A nil verdict
// with a nil error means the tests were skipped.
func (o *Orchestrator) Run(ctx context.Context) (*Verdict, error) {
	cfg := o.config
	o.startTime = time.Now()
	o.status.update(func(s *Status) { s.StartTime = o.startTime })

	printBanner(o.out, " P E R F O R M A N C E    T E S T S")

	if cfg.SkipTests {
		o.logger.Info("tests_skipped", "reason", "skip_tests")
		fmt.Fprintln(o.out, "Performance tests are skipped.")
		o.setPhase(PhaseDone)
		return nil, nil
	}

	files, err := DiscoverTestFiles(cfg.TestFilesDirectory, cfg.TestFilesIncluded, cfg.TestFilesExcluded)
	if errors.Is(err, ErrNoTestDirectory) {
		fmt.Fprintf(o.out, "<testFilesDirectory>%s</testFilesDirectory> does not exist...\n", absPath(cfg.TestFilesDirectory))
		fmt.Fprintln(o.out, "Performance tests are skipped.")
		o.logger.Info("tests_skipped", "reason", "test files directory does not exist", "dir", cfg.TestFilesDirectory)
		o.setPhase(PhaseDone)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover test files: %w", err)
	}
	if len(files) == 0 {
		o.logger.Warn("no_test_files",
			"dir", cfg.TestFilesDirectory,
			"include", cfg.TestFilesIncluded,
			"exclude", cfg.TestFilesExcluded,
		)
	}

	if err := o.preflight(ctx); err != nil {
		return nil, err
	}

	jar, err := process.FindRuntimeJar(cfg.JMeterHome, cfg.RuntimeJar)
	if err != nil {
		return nil, fmt.Errorf("locate jmeter jar: %w", err)
	}

	for _, dir := range []string{cfg.ResultsDirectory, cfg.LogsDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	output, closeOutput, err := o.outputSink()
	if err != nil {
		return nil, err
	}
	defer closeOutput()

	stopMetrics, err := o.startMetricsServer()
	if err != nil {
		return nil, err
	}
	defer stopMetrics()

	// Setup signal handling
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o.metrics.SetTestFiles(len(files))
	o.status.update(func(s *Status) { s.TestFiles = len(files) })
	o.logger.Info("run_starting",
		"test_files", len(files),
		"test_run_id", cfg.Perfana.TestRunID,
		"monitoring", cfg.Perfana.Enabled,
	)

	session := o.newSession()
	if session != nil {
		if err := session.Start(ctx); err != nil {
			return nil, fmt.Errorf("start monitoring session: %w", err)
		}
		defer session.Close()
	}

	o.setPhase(PhaseRunning)
	sup := o.newSupervisor(output)
	resultFiles, runErr := o.runTests(ctx, sup, jar, files)

	if runErr == nil && cfg.PostTestPause > 0 {
		o.logger.Info("post_test_pause", "duration", cfg.PostTestPause.String())
		select {
		case <-time.After(cfg.PostTestPause):
		case <-ctx.Done():
		}
	}

	// The completion notice and the assertion poll run even after an
	// interrupt, so they get a context the signal cannot cancel.
	o.setPhase(PhaseStopping)
	var outcome monitoring.AssertionOutcome
	var stopErr error
	if session != nil {
		outcome, stopErr = session.Stop(context.WithoutCancel(ctx))
		o.metrics.SetAssertions(outcome.Enabled, outcome.Passed)
	}

	if runErr != nil {
		o.setPhase(PhaseDone)
		return nil, runErr
	}
	if stopErr != nil {
		o.setPhase(PhaseDone)
		return nil, stopErr
	}

	if err := o.writeSideFile(resultFiles); err != nil {
		o.setPhase(PhaseDone)
		return nil, err
	}

	snapshot := filepath.Join(cfg.LogsDirectory, metrics.SnapshotFileName)
	if err := metrics.SaveSnapshot(snapshot, o.registry); err != nil {
		o.logger.Warn("metrics_snapshot_failed", "path", snapshot, "error", err)
	}

	o.uploadArtifacts(context.WithoutCancel(ctx), resultFiles)

	o.setPhase(PhaseChecking)
	policy := ScanPolicy(cfg.ScanResultsForSuccessfulRequests, cfg.ScanResultsForFailedRequests, cfg.IgnoreResultFailures, o.logger)
	v := Evaluate(resultFiles, results.FormatFromCSVFlag(cfg.ResultsCSV()), policy, outcome, o.logger)
	return o.finish(v)
}

// CheckResults is the verification phase on its own: it scans the result
// files recorded in the side-file by an earlier run.
func (o *Orchestrator) CheckResults(ctx context.Context) (*Verdict, error) {
	cfg := o.config
	o.startTime = time.Now()
	o.setPhase(PhaseChecking)

	policy := ScanPolicy(cfg.ScanResultsForSuccessfulRequests, cfg.ScanResultsForFailedRequests, cfg.IgnoreResultFailures, o.logger)
	if !policy.ScanSuccess && !policy.ScanFailure {
		return o.finish(&Verdict{Passed: true})
	}

	side, err := testconfig.Load(cfg.TestConfigFile)
	if err != nil {
		return nil, err
	}
	format := results.FormatFromCSVFlag(side.ResultsOutputIsCSVFormat)
	o.logger.Info("scanning_results",
		"format", format.String(),
		"files", len(side.ResultFilesLocations),
		"side_file", cfg.TestConfigFile,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := Evaluate(side.ResultFilesLocations, format, policy, monitoring.AssertionOutcome{}, o.logger)
	return o.finish(v)
}

// GUI starts JMeter with its user interface, optionally opening testFile.
// Unless RunInBackground is set it waits for the GUI to be closed.
func (o *Orchestrator) GUI(ctx context.Context, testFile string) error {
	cfg := o.config
	printBanner(o.out, " S T A R T I N G    J M E T E R    G U I")

	if err := o.preflight(ctx); err != nil {
		return err
	}
	jar, err := process.FindRuntimeJar(cfg.JMeterHome, cfg.RuntimeJar)
	if err != nil {
		return fmt.Errorf("locate jmeter jar: %w", err)
	}
	if err := os.MkdirAll(cfg.LogsDirectory, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.LogsDirectory, err)
	}

	args := o.guiArguments(testFile)
	sup := o.newSupervisor(o.out)
	_, status, err := sup.Run(ctx, o.processSpec(jar, args.Build()), cfg.RunInBackground)
	if err != nil {
		return err
	}
	if !cfg.RunInBackground && status.ExitCode != 0 {
		return &ProcessExitError{TestFile: testFile, ExitCode: status.ExitCode}
	}
	return nil
}

// Commands returns the command line for every discovered test plan, for
// display. Nothing is started.
func (o *Orchestrator) Commands() ([]string, error) {
	cfg := o.config
	files, err := DiscoverTestFiles(cfg.TestFilesDirectory, cfg.TestFilesIncluded, cfg.TestFilesExcluded)
	if err != nil {
		return nil, err
	}
	jar, err := process.FindRuntimeJar(cfg.JMeterHome, cfg.RuntimeJar)
	if err != nil {
		// Still useful for display.
		jar = filepath.Join(cfg.JMeterHome, "bin", "ApacheJMeter.jar")
	}

	now := time.Now()
	names := PlanNames(cfg.TestFilesDirectory, files)
	cmds := make([]string, 0, len(files))
	for _, f := range files {
		spec := o.processSpec(jar, o.testArguments(f, names[f], now).Build())
		cmds = append(cmds, process.CommandString(spec))
	}
	return cmds, nil
}

// runTests runs the test plans one at a time. It stops at the first plan
// that cannot be started, exits non-zero or whose wait is interrupted. The
// result files of every started plan are returned.
func (o *Orchestrator) runTests(ctx context.Context, sup *supervisor.Supervisor, jar string, files []string) ([]string, error) {
	resultFiles := make([]string, 0, len(files))
	names := PlanNames(o.config.TestFilesDirectory, files)

	for i, file := range files {
		if ctx.Err() != nil {
			return resultFiles, supervisor.ErrInterrupted
		}

		args := o.testArguments(file, names[file], time.Now())
		if args.ReportDirectory != "" {
			// JMeter refuses a report directory that is not empty.
			if err := os.RemoveAll(args.ReportDirectory); err != nil {
				return resultFiles, fmt.Errorf("clear report directory: %w", err)
			}
		}

		fmt.Fprintf(o.out, "\nExecuting test: %s\n", filepath.Base(file))
		o.logger.Info("test_starting",
			"test_file", file,
			"index", i+1,
			"total", len(files),
			"results_file", args.ResultsFile,
		)
		o.status.update(func(s *Status) { s.CurrentTest = filepath.Base(file) })

		h, err := sup.Start(o.processSpec(jar, args.Build()))
		if err != nil {
			return resultFiles, err
		}
		resultFiles = append(resultFiles, args.ResultsFile)

		status, err := h.Wait(ctx)
		if errors.Is(err, supervisor.ErrInterrupted) {
			o.logger.Warn("process_left_running", "pid", h.PID(), "test_file", file)
			return resultFiles, err
		}
		if err != nil {
			return resultFiles, err
		}

		o.status.update(func(s *Status) { s.Completed++ })
		fmt.Fprintf(o.out, "Completed Test: %s\n", filepath.Base(file))

		if status.ExitCode != 0 {
			return resultFiles, &ProcessExitError{
				TestFile: file,
				ExitCode: status.ExitCode,
				Output:   h.Output().RecentLines(10),
			}
		}
	}

	return resultFiles, nil
}

func (o *Orchestrator) testArguments(testFile, plan string, now time.Time) process.TestArguments {
	cfg := o.config
	name := process.ResultFileName(plan, cfg.ResultsCSV(), cfg.TestResultsTimestamp, cfg.AppendResultsTimestamp, now)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	args := process.TestArguments{
		TestFile:     absPath(testFile),
		ResultsFile:  absPath(filepath.Join(cfg.ResultsDirectory, name)),
		LogFile:      absPath(filepath.Join(cfg.LogsDirectory, stem+".log")),
		JMeterHome:   absPath(cfg.JMeterHome),
		CSV:          cfg.ResultsCSV(),
		Properties:   cfg.Properties,
		RootLogLevel: cfg.JMeterLogLevel,
	}
	if cfg.GenerateReports {
		args.ReportDirectory = absPath(filepath.Join(cfg.ReportDirectory, stem))
	}
	return args
}

func (o *Orchestrator) guiArguments(testFile string) process.TestArguments {
	cfg := o.config
	args := process.TestArguments{
		LogFile:      absPath(filepath.Join(cfg.LogsDirectory, "jmeter-gui.log")),
		JMeterHome:   absPath(cfg.JMeterHome),
		CSV:          cfg.ResultsCSV(),
		Properties:   cfg.Properties,
		RootLogLevel: cfg.JMeterLogLevel,
		GUI:          true,
	}
	if testFile != "" {
		args.TestFile = absPath(testFile)
	}
	return args
}

func (o *Orchestrator) processSpec(jar string, arguments []string) process.ProcessSpec {
	cfg := o.config
	return process.ProcessSpec{
		JVM: process.JVMSettings{
			JavaRuntime:   cfg.JavaRuntime,
			InitialHeapMB: cfg.InitialHeapMB,
			MaxHeapMB:     cfg.MaxHeapMB,
			Arguments:     cfg.JVMArguments,
		},
		RuntimeJar:       jar,
		Arguments:        arguments,
		WorkingDirectory: o.workingDirectory(),
	}
}

// workingDirectory defaults to <jmeter_home>/bin, where JMeter expects to
// find its property files.
func (o *Orchestrator) workingDirectory() string {
	if o.config.WorkingDirectory != "" {
		return o.config.WorkingDirectory
	}
	return filepath.Join(o.config.JMeterHome, "bin")
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	cfg := o.config
	if cfg.SkipPreflight {
		return nil
	}

	dirs := []string{cfg.ResultsDirectory, cfg.LogsDirectory}
	if cfg.GenerateReports {
		dirs = append(dirs, cfg.ReportDirectory)
	}
	result := preflight.RunAll(ctx, preflight.Options{
		JavaRuntime:       cfg.JavaRuntime,
		JMeterHome:        cfg.JMeterHome,
		RuntimeJar:        cfg.RuntimeJar,
		OutputDirectories: dirs,
	})
	preflight.PrintResults(o.out, result)
	if !result.Passed {
		return errors.New("preflight checks failed (use --skip-preflight to override)")
	}
	return nil
}

// outputSink returns where the load generator output goes: stdout, or a
// log file when output is suppressed.
func (o *Orchestrator) outputSink() (io.Writer, func(), error) {
	if !o.config.SuppressJMeterOutput {
		return o.out, func() {}, nil
	}
	path := filepath.Join(o.config.LogsDirectory, outputLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	o.logger.Info("jmeter_output_suppressed", "path", path)
	return f, func() { f.Close() }, nil
}

func (o *Orchestrator) startMetricsServer() (func(), error) {
	if o.metricsServer == nil {
		return func() {}, nil
	}
	if err := o.metricsServer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}, nil
}

func (o *Orchestrator) newSupervisor(output io.Writer) *supervisor.Supervisor {
	return supervisor.New(supervisor.Config{
		Logger:  o.logger,
		Output:  output,
		Verbose: o.config.Verbose,
		Callbacks: supervisor.Callbacks{
			OnStart:  o.onStart,
			OnExit:   o.onExit,
			OnOutput: o.onOutput,
		},
	})
}

func (o *Orchestrator) newSession() *monitoring.Session {
	p := o.config.Perfana
	if !p.Enabled {
		return nil
	}

	client := monitoring.NewClient(monitoring.ClientConfig{
		BaseURL:   p.URL,
		AuthToken: p.AuthToken,
	})
	meta := monitoring.RunMetadata{
		Application:        p.Application,
		TestType:           p.TestType,
		TestEnvironment:    p.TestEnvironment,
		TestRunID:          p.TestRunID,
		ApplicationRelease: p.ApplicationRelease,
		CIBuildResultsURL:  p.CIBuildResultsURL,
		RampUp:             p.RampUp,
		ConstantLoad:       p.ConstantLoad,
		Annotations:        p.Annotations,
		Variables:          p.Variables,
		AssertResults:      p.AssertResults,
	}
	return monitoring.NewSession(client, meta,
		monitoring.WithHeartbeatPeriod(p.HeartbeatPeriod),
		monitoring.WithPollDelay(p.PollDelay),
		monitoring.WithMaxPollAttempts(p.PollAttempts),
		monitoring.WithLogger(o.logger),
		monitoring.WithCallbacks(monitoring.Callbacks{
			OnStateChange: o.onSessionState,
			OnHeartbeat:   o.onHeartbeat,
			OnPollAttempt: o.onPollAttempt,
		}),
	)
}

// writeSideFile records the result files for the verification phase. An
// existing side-file is updated so keys written by other tools survive.
func (o *Orchestrator) writeSideFile(resultFiles []string) error {
	path := o.config.TestConfigFile

	side, err := testconfig.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("side_file_replaced", "path", path, "error", err)
		}
		side = testconfig.New(o.config.ResultsCSV())
	}
	side.ResultFilesLocations = resultFiles
	side.ResultsOutputIsCSVFormat = o.config.ResultsCSV()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := side.Save(path); err != nil {
		return err
	}
	o.logger.Info("side_file_written", "path", path, "result_files", len(resultFiles))
	return nil
}

// uploadArtifacts copies the run artifacts to object storage. Upload
// failures are logged; they never change the verdict.
func (o *Orchestrator) uploadArtifacts(ctx context.Context, resultFiles []string) {
	u := o.config.Upload
	if u.Provider == "" && o.uploadProvider == nil {
		return
	}

	provider := o.uploadProvider
	if provider == nil {
		p, err := upload.NewProvider(u.Provider)
		if err != nil {
			o.logger.Warn("upload_failed", "error", err)
			return
		}
		if err := p.Configure(ctx, upload.Settings{
			Endpoint:  u.Endpoint,
			AccessKey: u.AccessKey,
			SecretKey: u.SecretKey,
			Bucket:    u.Bucket,
			Region:    u.Region,
			Secure:    u.UseSSL,
		}); err != nil {
			o.logger.Warn("upload_failed", "error", err)
			return
		}
		provider = p
	}

	paths := append([]string{}, resultFiles...)
	paths = append(paths, o.config.TestConfigFile, o.config.LogsDirectory)
	if o.config.GenerateReports {
		paths = append(paths, o.config.ReportDirectory)
	}

	uploader := upload.NewUploader(provider, u.Prefix, o.config.Perfana.TestRunID, o.logger)
	objs, err := uploader.UploadAll(ctx, paths)
	if err != nil {
		o.logger.Warn("upload_failed", "uploaded", len(objs), "error", err)
		return
	}
	fmt.Fprintf(o.out, "Uploaded %d artifacts to %s\n", len(objs), provider.Name())
}

// finish publishes the verdict and prints the summary.
func (o *Orchestrator) finish(v *Verdict) (*Verdict, error) {
	v.LogsDirectory = absPath(o.config.LogsDirectory)

	o.metrics.RecordResults(metrics.ResultsUpdate{
		FilesScanned: v.FilesScanned,
		FilesSkipped: len(v.FilesSkipped),
		Success:      v.Success,
		Failure:      v.Failure,
		P50:          v.Latency.P50,
		P90:          v.Latency.P90,
		P95:          v.Latency.P95,
		P99:          v.Latency.P99,
	})
	o.metrics.SetVerdict(v.Passed)
	o.status.update(func(s *Status) {
		s.Phase = PhaseDone
		s.Verdict = v
	})

	o.logger.Info("verdict",
		"passed", v.Passed,
		"files_scanned", v.FilesScanned,
		"success", v.Success,
		"failure", v.Failure,
		"local_failure", v.LocalFailure,
		"assertions_failed", v.Assertions.Failed(),
	)

	PrintVerdict(o.out, v)
	o.printExitSummary()

	if !v.Passed {
		return v, &VerdictError{Verdict: v}
	}
	return v, nil
}

// printExitSummary prints a summary of the run.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()
	if summary.ProcessStarts == 0 && summary.Heartbeats == 0 {
		return
	}

	fmt.Fprintln(o.out, lineSeparator)
	fmt.Fprintf(o.out, "Run Duration:           %s\n", formatDuration(time.Since(o.startTime)))
	fmt.Fprintf(o.out, "Test Run ID:            %s\n", o.config.Perfana.TestRunID)
	fmt.Fprintf(o.out, "JMeter Starts:          %d\n", summary.ProcessStarts)

	if len(summary.ExitCodes) > 0 {
		codes := make([]int, 0, len(summary.ExitCodes))
		for code := range summary.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		fmt.Fprintln(o.out, "Exit Codes:")
		for _, code := range codes {
			fmt.Fprintf(o.out, "  %3d %-16s %d\n", code, exitCodeLabel(code), summary.ExitCodes[code])
		}
	}

	if o.config.Perfana.Enabled {
		fmt.Fprintf(o.out, "Heartbeats:             %d (%d failed)\n", summary.Heartbeats, summary.HeartbeatFailures)
		fmt.Fprintf(o.out, "Assertion Polls:        %d\n", summary.PollAttempts)
	}
	if o.metricsServer != nil {
		fmt.Fprintf(o.out, "Metrics endpoint was:   http://%s/metrics\n", o.metricsServer.Addr())
	}
	fmt.Fprintln(o.out, lineSeparator)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.status.update(func(s *Status) { s.Phase = p })
}

// Callback handlers

func (o *Orchestrator) onStart(pid int) {
	o.metrics.ProcessStarted()
	o.status.update(func(s *Status) { s.PID = pid })
}

func (o *Orchestrator) onExit(exitCode int, uptime time.Duration) {
	o.metrics.RecordExit(exitCode, uptime)
	o.status.update(func(s *Status) { s.PID = 0 })
}

func (o *Orchestrator) onOutput(line string) {
	level := logging.ClassifyLine(line)
	o.metrics.RecordOutputLine(strings.ToLower(level.String()))

	sum, isProgress := results.ParseSummariser(line)
	if isProgress {
		o.metrics.RecordProgress(metrics.ProgressUpdate{
			Cumulative: sum.Cumulative,
			Samples:    sum.Samples,
			Rate:       sum.Rate,
			Avg:        sum.Avg,
			Min:        sum.Min,
			Max:        sum.Max,
			Errors:     sum.Errors,
			Active:     sum.Active,
		})
	}

	o.status.update(func(s *Status) {
		s.OutputLines++
		s.LastLine = line
		if level >= slog.LevelWarn {
			s.ProblemLines++
		}
		if isProgress {
			if sum.Cumulative {
				s.Total = sum
			} else {
				s.Interval = sum
			}
		}
	})
}

func (o *Orchestrator) onSessionState(_, newState monitoring.State) {
	o.metrics.SetSessionState(int(newState))
	o.status.update(func(s *Status) { s.SessionState = newState })
}

func (o *Orchestrator) onHeartbeat(completed bool, err error) {
	o.metrics.RecordHeartbeat(completed, err)
	o.status.update(func(s *Status) {
		s.Heartbeats++
		if err != nil {
			s.HeartbeatFailures++
		}
	})
}

func (o *Orchestrator) onPollAttempt(attempt, status int, err error) {
	o.metrics.RecordPollAttempt(status, err)
	o.status.update(func(s *Status) { s.PollAttempts = attempt })
}

// absPath returns the absolute form of p, or p unchanged if that fails.
func absPath(p string) string {
	if p == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
