// Package metrics provides Prometheus metrics for go-jmeter-runner.
//
// Metrics are grouped by dashboard panel:
//   - Run overview: what is being run and how far along it is
//   - Process: load generator starts, exits and uptime
//   - Progress: live JMeter summariser figures
//   - Monitoring: heartbeats and assertion polling
//   - Results: the scanned result files and the verdict
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jmeter_runner"

// Collector manages all Prometheus metrics for one run.
type Collector struct {
	// --- Panel 1: Run overview ---
	info                   *prometheus.GaugeVec
	plannedDurationSeconds prometheus.Gauge
	testFiles              prometheus.Gauge
	testFilesCompleted     prometheus.Counter

	// --- Panel 2: Process ---
	processRunning       prometheus.Gauge
	processStartsTotal   prometheus.Counter
	processExitsTotal    *prometheus.CounterVec
	processUptimeSeconds prometheus.Histogram
	outputLinesTotal     *prometheus.CounterVec

	// --- Panel 3: Progress ---
	samples            prometheus.Gauge
	sampleRate         prometheus.Gauge
	responseAvgSeconds prometheus.Gauge
	responseMinSeconds prometheus.Gauge
	responseMaxSeconds prometheus.Gauge
	sampleErrors       prometheus.Gauge
	activeThreads      prometheus.Gauge

	// --- Panel 4: Monitoring ---
	sessionState      prometheus.Gauge
	heartbeatsTotal   *prometheus.CounterVec
	pollAttemptsTotal *prometheus.CounterVec
	assertionsPassed  prometheus.Gauge

	// --- Panel 5: Results ---
	resultFilesScanned prometheus.Gauge
	resultFilesSkipped prometheus.Gauge
	resultSamples      *prometheus.GaugeVec
	resultLatency      *prometheus.GaugeVec
	verdictPassed      prometheus.Gauge

	// For summary generation
	mu                sync.Mutex
	startTime         time.Time
	processStarts     int64
	exitCodes         map[int]int64
	heartbeats        int64
	heartbeatFailures int64
	pollAttempts      int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version         string
	Application     string
	TestRunID       string
	PlannedDuration time.Duration
	TestFiles       int
}

// NewCollector creates a new metrics collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the run (value always 1)",
		}, []string{"version", "application", "test_run_id"}),
		plannedDurationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_duration_seconds",
			Help:      "Ramp-up plus constant-load time",
		}),
		testFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_files",
			Help:      "Number of test plans in this run",
		}),
		testFilesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_files_completed_total",
			Help:      "Test plans that have finished",
		}),

		processRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_running",
			Help:      "1 while the load generator is running",
		}),
		processStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "Load generator processes started",
		}),
		processExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Load generator exits by category",
		}, []string{"category"}),
		processUptimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_uptime_seconds",
			Help:      "Load generator run time",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		outputLinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_lines_total",
			Help:      "Load generator output lines by level",
		}, []string{"level"}),

		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Samples so far according to the summariser",
		}),
		sampleRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples_per_second",
			Help:      "Current sample throughput",
		}),
		responseAvgSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "response_time_avg_seconds",
			Help:      "Average response time in the last summariser interval",
		}),
		responseMinSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "response_time_min_seconds",
			Help:      "Minimum response time in the last summariser interval",
		}),
		responseMaxSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "response_time_max_seconds",
			Help:      "Maximum response time in the last summariser interval",
		}),
		sampleErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_errors",
			Help:      "Failed samples so far according to the summariser",
		}),
		activeThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_threads",
			Help:      "Active JMeter threads",
		}),

		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitoring_session_state",
			Help:      "Monitoring session state (0=idle, 1=active, 2=stopped)",
		}),
		heartbeatsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_heartbeats_total",
			Help:      "Notices sent to the monitoring service",
		}, []string{"kind", "outcome"}),
		pollAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_poll_attempts_total",
			Help:      "Benchmark result requests by outcome",
		}, []string{"outcome"}),
		assertionsPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitoring_assertions_passed",
			Help:      "1 if remote assertions passed, 0 if they failed, -1 if not evaluated",
		}),

		resultFilesScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_files_scanned",
			Help:      "Result files scanned",
		}),
		resultFilesSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_files_skipped",
			Help:      "Result files that could not be parsed",
		}),
		resultSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_samples",
			Help:      "Samples in the result files by outcome",
		}, []string{"outcome"}),
		resultLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_latency_seconds",
			Help:      "Response time percentiles from the result files",
		}, []string{"quantile"}),
		verdictPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verdict_passed",
			Help:      "1 if the run passed, 0 if it failed, -1 before the verdict",
		}),

		startTime: time.Now(),
		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.plannedDurationSeconds,
		c.testFiles,
		c.testFilesCompleted,

		c.processRunning,
		c.processStartsTotal,
		c.processExitsTotal,
		c.processUptimeSeconds,
		c.outputLinesTotal,

		c.samples,
		c.sampleRate,
		c.responseAvgSeconds,
		c.responseMinSeconds,
		c.responseMaxSeconds,
		c.sampleErrors,
		c.activeThreads,

		c.sessionState,
		c.heartbeatsTotal,
		c.pollAttemptsTotal,
		c.assertionsPassed,

		c.resultFilesScanned,
		c.resultFilesSkipped,
		c.resultSamples,
		c.resultLatency,
		c.verdictPassed,
	)

	// Set initial values
	c.info.WithLabelValues(cfg.Version, cfg.Application, cfg.TestRunID).Set(1)
	c.plannedDurationSeconds.Set(cfg.PlannedDuration.Seconds())
	c.testFiles.Set(float64(cfg.TestFiles))
	c.assertionsPassed.Set(-1)
	c.verdictPassed.Set(-1)

	return c
}

// SetTestFiles records how many test plans the run will execute.
func (c *Collector) SetTestFiles(n int) {
	c.testFiles.Set(float64(n))
}

// =============================================================================
// Process
// =============================================================================

// ProcessStarted records a load generator start.
func (c *Collector) ProcessStarted() {
	c.processStartsTotal.Inc()
	c.processRunning.Set(1)

	c.mu.Lock()
	c.processStarts++
	c.mu.Unlock()
}

// RecordExit records a process exit event.
func (c *Collector) RecordExit(exitCode int, uptime time.Duration) {
	// Categorize exit code
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 {
		category = "signal"
	}
	c.processExitsTotal.WithLabelValues(category).Inc()
	c.processUptimeSeconds.Observe(uptime.Seconds())
	c.processRunning.Set(0)
	c.testFilesCompleted.Inc()

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// RecordOutputLine counts one line of load generator output.
func (c *Collector) RecordOutputLine(level string) {
	c.outputLinesTotal.WithLabelValues(level).Inc()
}

// =============================================================================
// Progress
// =============================================================================

// ProgressUpdate is one summariser reading.
// This mirrors results.Summariser to keep the packages independent.
type ProgressUpdate struct {
	Cumulative bool
	Samples    int64
	Rate       float64
	Avg        time.Duration
	Min        time.Duration
	Max        time.Duration
	Errors     int64
	Active     int
}

// RecordProgress updates the live gauges. Cumulative readings set the
// totals, interval readings set the rates and response times.
func (c *Collector) RecordProgress(u ProgressUpdate) {
	if u.Cumulative {
		c.samples.Set(float64(u.Samples))
		c.sampleErrors.Set(float64(u.Errors))
		return
	}
	c.sampleRate.Set(u.Rate)
	c.responseAvgSeconds.Set(u.Avg.Seconds())
	c.responseMinSeconds.Set(u.Min.Seconds())
	c.responseMaxSeconds.Set(u.Max.Seconds())
	c.activeThreads.Set(float64(u.Active))
}

// =============================================================================
// Monitoring
// =============================================================================

// SetSessionState records the monitoring session state.
func (c *Collector) SetSessionState(state int) {
	c.sessionState.Set(float64(state))
}

// RecordHeartbeat records one notice to the monitoring service.
func (c *Collector) RecordHeartbeat(completed bool, err error) {
	kind := "progress"
	if completed {
		kind = "completion"
	}
	c.heartbeatsTotal.WithLabelValues(kind, outcome(err)).Inc()

	c.mu.Lock()
	c.heartbeats++
	if err != nil {
		c.heartbeatFailures++
	}
	c.mu.Unlock()
}

// RecordPollAttempt records one benchmark results request.
func (c *Collector) RecordPollAttempt(status int, err error) {
	o := "ok"
	switch {
	case err != nil:
		o = "transport_error"
	case status != 200:
		o = "not_ready"
	}
	c.pollAttemptsTotal.WithLabelValues(o).Inc()

	c.mu.Lock()
	c.pollAttempts++
	c.mu.Unlock()
}

// SetAssertions records the remote assertion verdict.
func (c *Collector) SetAssertions(enabled, passed bool) {
	switch {
	case !enabled:
		c.assertionsPassed.Set(-1)
	case passed:
		c.assertionsPassed.Set(1)
	default:
		c.assertionsPassed.Set(0)
	}
}

// =============================================================================
// Results
// =============================================================================

// ResultsUpdate holds the outcome of scanning the result files.
type ResultsUpdate struct {
	FilesScanned int
	FilesSkipped int
	Success      int64
	Failure      int64
	P50          time.Duration
	P90          time.Duration
	P95          time.Duration
	P99          time.Duration
}

// RecordResults publishes the scanned result counts.
func (c *Collector) RecordResults(u ResultsUpdate) {
	c.resultFilesScanned.Set(float64(u.FilesScanned))
	c.resultFilesSkipped.Set(float64(u.FilesSkipped))
	c.resultSamples.WithLabelValues("success").Set(float64(u.Success))
	c.resultSamples.WithLabelValues("failure").Set(float64(u.Failure))
	c.resultLatency.WithLabelValues("0.5").Set(u.P50.Seconds())
	c.resultLatency.WithLabelValues("0.9").Set(u.P90.Seconds())
	c.resultLatency.WithLabelValues("0.95").Set(u.P95.Seconds())
	c.resultLatency.WithLabelValues("0.99").Set(u.P99.Seconds())
}

// SetVerdict records the final pass/fail.
func (c *Collector) SetVerdict(passed bool) {
	if passed {
		c.verdictPassed.Set(1)
	} else {
		c.verdictPassed.Set(0)
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration          time.Duration
	ProcessStarts     int64
	ExitCodes         map[int]int64
	Heartbeats        int64
	HeartbeatFailures int64
	PollAttempts      int64
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:          time.Since(c.startTime),
		ProcessStarts:     c.processStarts,
		ExitCodes:         make(map[int]int64, len(c.exitCodes)),
		Heartbeats:        c.heartbeats,
		HeartbeatFailures: c.heartbeatFailures,
		PollAttempts:      c.pollAttempts,
	}
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}
	return s
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
