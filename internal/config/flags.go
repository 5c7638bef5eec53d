package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// BindFlags registers every configuration flag on fs, bound to cfg. The
// current values of cfg become the flag defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// JMeter
	fs.StringVar(&cfg.JMeterHome, "jmeter-home", cfg.JMeterHome, "JMeter installation directory")
	fs.StringVar(&cfg.RuntimeJar, "runtime-jar", cfg.RuntimeJar, "JMeter jar (default: discovered under <jmeter-home>/bin)")
	fs.StringVar(&cfg.JavaRuntime, "java", cfg.JavaRuntime, "Java runtime executable")
	fs.IntVar(&cfg.InitialHeapMB, "xms", cfg.InitialHeapMB, "Initial JVM heap in MB")
	fs.IntVar(&cfg.MaxHeapMB, "xmx", cfg.MaxHeapMB, "Maximum JVM heap in MB")
	fs.StringArrayVar(&cfg.JVMArguments, "jvm-arg", cfg.JVMArguments, "Extra JVM argument (can repeat)")
	fs.StringArrayVarP(&cfg.PropertyPairs, "property", "J", nil, "JMeter property key=value (can repeat)")
	fs.StringVar(&cfg.JMeterLogLevel, "jmeter-log-level", cfg.JMeterLogLevel, `Override JMeter root log level, e.g. "debug"`)

	// Test files
	fs.StringVar(&cfg.TestFilesDirectory, "test-dir", cfg.TestFilesDirectory, "Directory containing test plans")
	fs.StringSliceVar(&cfg.TestFilesIncluded, "include", cfg.TestFilesIncluded, "Test plan glob patterns to run")
	fs.StringSliceVar(&cfg.TestFilesExcluded, "exclude", cfg.TestFilesExcluded, "Test plan glob patterns to skip")
	fs.StringVar(&cfg.WorkingDirectory, "working-dir", cfg.WorkingDirectory, "JMeter working directory (default: <jmeter-home>/bin)")

	// Results
	fs.StringVar(&cfg.ResultsDirectory, "results-dir", cfg.ResultsDirectory, "Directory for result files")
	fs.StringVar(&cfg.ResultsFormat, "results-format", cfg.ResultsFormat, `Result file format: "csv" or "xml"`)
	fs.BoolVar(&cfg.TestResultsTimestamp, "results-timestamp", cfg.TestResultsTimestamp, "Add a timestamp to result file names")
	fs.BoolVar(&cfg.AppendResultsTimestamp, "append-timestamp", cfg.AppendResultsTimestamp, "Put the timestamp after the test name")
	fs.BoolVar(&cfg.GenerateReports, "reports", cfg.GenerateReports, "Generate the JMeter HTML report")
	fs.StringVar(&cfg.ReportDirectory, "report-dir", cfg.ReportDirectory, "Directory for HTML reports")
	fs.StringVar(&cfg.LogsDirectory, "logs-dir", cfg.LogsDirectory, "Directory for JMeter logs")
	fs.StringVar(&cfg.TestConfigFile, "test-config-file", cfg.TestConfigFile, "Side-file recording result file locations")

	// Result checking
	fs.BoolVar(&cfg.ScanResultsForSuccessfulRequests, "scan-success", cfg.ScanResultsForSuccessfulRequests, "Count successful requests")
	fs.BoolVar(&cfg.ScanResultsForFailedRequests, "scan-failures", cfg.ScanResultsForFailedRequests, "Count failed requests")
	fs.BoolVar(&cfg.IgnoreResultFailures, "ignore-failures", cfg.IgnoreResultFailures, "Do not fail the run on failed requests")

	// Run behaviour
	fs.BoolVar(&cfg.SkipTests, "skip-tests", cfg.SkipTests, "Skip running the tests")
	fs.BoolVar(&cfg.SuppressJMeterOutput, "suppress-output", cfg.SuppressJMeterOutput, "Write JMeter output to <logs-dir>/jmeter-output.log instead of stdout")
	fs.DurationVar(&cfg.PostTestPause, "post-test-pause", cfg.PostTestPause, "Pause after the tests before checking results")
	fs.BoolVar(&cfg.RunInBackground, "run-in-background", cfg.RunInBackground, "Do not wait for the GUI to exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Monitoring
	p := &cfg.Perfana
	fs.BoolVar(&p.Enabled, "perfana", p.Enabled, "Report the run to Perfana")
	fs.StringVar(&p.URL, "perfana-url", p.URL, "Perfana base URL")
	fs.StringVar(&p.AuthToken, "perfana-token", p.AuthToken, "Perfana bearer token")
	fs.StringVar(&p.Application, "perfana-application", p.Application, "Application under test")
	fs.StringVar(&p.TestType, "perfana-test-type", p.TestType, "Test type")
	fs.StringVar(&p.TestEnvironment, "perfana-test-environment", p.TestEnvironment, "Test environment")
	fs.StringVar(&p.TestRunID, "perfana-test-run-id", p.TestRunID, "Test run id (default: generated)")
	fs.StringVar(&p.ApplicationRelease, "perfana-release", p.ApplicationRelease, "Application release")
	fs.StringVar(&p.CIBuildResultsURL, "perfana-ci-url", p.CIBuildResultsURL, "CI build results URL")
	fs.DurationVar(&p.RampUp, "perfana-ramp-up", p.RampUp, "Ramp-up time")
	fs.DurationVar(&p.ConstantLoad, "perfana-constant-load", p.ConstantLoad, "Constant-load time")
	fs.StringVar(&p.Annotations, "perfana-annotations", p.Annotations, "Free-form run annotations")
	fs.StringArrayVar(&p.VariablePairs, "perfana-variable", nil, "Perfana variable key=value (can repeat)")
	fs.BoolVar(&p.AssertResults, "perfana-assert", p.AssertResults, "Fail the run on failing Perfana assertions")

	// Hidden advanced flags
	fs.DurationVar(&p.HeartbeatPeriod, "perfana-heartbeat-period", p.HeartbeatPeriod, "")
	fs.DurationVar(&p.PollDelay, "perfana-poll-delay", p.PollDelay, "")
	fs.IntVar(&p.PollAttempts, "perfana-poll-attempts", p.PollAttempts, "")
	_ = fs.MarkHidden("perfana-heartbeat-period")
	_ = fs.MarkHidden("perfana-poll-delay")
	_ = fs.MarkHidden("perfana-poll-attempts")

	// Upload
	u := &cfg.Upload
	fs.StringVar(&u.Provider, "upload-provider", u.Provider, `Upload provider for result artifacts (e.g. "minio")`)
	fs.StringVar(&u.Endpoint, "upload-endpoint", u.Endpoint, "Object storage endpoint (host:port)")
	fs.StringVar(&u.AccessKey, "upload-access-key", u.AccessKey, "Object storage access key")
	fs.StringVar(&u.SecretKey, "upload-secret-key", u.SecretKey, "Object storage secret key")
	fs.StringVar(&u.Bucket, "upload-bucket", u.Bucket, "Bucket for result artifacts")
	fs.StringVar(&u.Prefix, "upload-prefix", u.Prefix, `Object key prefix ("{run_id}" is replaced)`)
	fs.StringVar(&u.Region, "upload-region", u.Region, "Bucket region")
	fs.BoolVar(&u.UseSSL, "upload-ssl", u.UseSSL, "Use TLS for object storage")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Show a live terminal dashboard")
}

// ParseKV splits a key=value pair. The key must not be empty; the value may.
func ParseKV(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid format, expected key=value: %s", pair)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", fmt.Errorf("empty key in key=value pair")
	}
	return key, strings.TrimSpace(value), nil
}

// mergeKV parses pairs into dst, creating it if needed. Later pairs win.
func mergeKV(dst map[string]string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return dst, nil
	}
	if dst == nil {
		dst = make(map[string]string, len(pairs))
	}
	for _, pair := range pairs {
		k, v, err := ParseKV(pair)
		if err != nil {
			return dst, err
		}
		dst[k] = v
	}
	return dst, nil
}
