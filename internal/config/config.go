// Package config provides configuration management for go-jmeter-runner.
package config

import "time"

// Config holds all configuration options for a run.
type Config struct {
	// JMeter
	JMeterHome     string            `yaml:"jmeter_home"`
	RuntimeJar     string            `yaml:"runtime_jar"` // empty = discover under <jmeter_home>/bin
	JavaRuntime    string            `yaml:"java_runtime"`
	InitialHeapMB  int               `yaml:"initial_heap_mb"`
	MaxHeapMB      int               `yaml:"max_heap_mb"`
	JVMArguments   []string          `yaml:"jvm_arguments"`
	Properties     map[string]string `yaml:"properties"`
	PropertyPairs  []string          `yaml:"-"` // --property key=value
	JMeterLogLevel string            `yaml:"jmeter_log_level"` // empty = JMeter default

	// Test files
	TestFilesDirectory string   `yaml:"test_files_directory"`
	TestFilesIncluded  []string `yaml:"test_files_included"`
	TestFilesExcluded  []string `yaml:"test_files_excluded"`
	WorkingDirectory   string   `yaml:"working_directory"` // empty = <jmeter_home>/bin

	// Results
	ResultsDirectory       string `yaml:"results_directory"`
	ResultsFormat          string `yaml:"results_format"` // csv, xml
	TestResultsTimestamp   bool   `yaml:"test_results_timestamp"`
	AppendResultsTimestamp bool   `yaml:"append_results_timestamp"`
	GenerateReports        bool   `yaml:"generate_reports"`
	ReportDirectory        string `yaml:"report_directory"`
	LogsDirectory          string `yaml:"logs_directory"`
	TestConfigFile         string `yaml:"test_config_file"`

	// Result checking
	ScanResultsForSuccessfulRequests bool `yaml:"scan_results_for_successful_requests"`
	ScanResultsForFailedRequests     bool `yaml:"scan_results_for_failed_requests"`
	IgnoreResultFailures             bool `yaml:"ignore_result_failures"`

	// Run behaviour
	SkipTests            bool          `yaml:"skip_tests"`
	SuppressJMeterOutput bool          `yaml:"suppress_jmeter_output"`
	PostTestPause        time.Duration `yaml:"post_test_pause"`
	RunInBackground      bool          `yaml:"run_in_background"` // gui only
	SkipPreflight        bool          `yaml:"skip_preflight"`

	Perfana PerfanaConfig `yaml:"perfana"`
	Upload  UploadConfig  `yaml:"upload"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"` // empty = disabled
	Verbose     bool   `yaml:"verbose"`
	LogFormat   string `yaml:"log_format"` // json, text
	LogLevel    string `yaml:"log_level"`
	TUI         bool   `yaml:"tui"`
}

// PerfanaConfig configures the monitoring session.
type PerfanaConfig struct {
	Enabled            bool              `yaml:"enabled"`
	URL                string            `yaml:"url"`
	AuthToken          string            `yaml:"auth_token"`
	Application        string            `yaml:"application"`
	TestType           string            `yaml:"test_type"`
	TestEnvironment    string            `yaml:"test_environment"`
	TestRunID          string            `yaml:"test_run_id"` // empty = generated
	ApplicationRelease string            `yaml:"application_release"`
	CIBuildResultsURL  string            `yaml:"ci_build_results_url"`
	RampUp             time.Duration     `yaml:"ramp_up"`
	ConstantLoad       time.Duration     `yaml:"constant_load"`
	Annotations        string            `yaml:"annotations"`
	Variables          map[string]string `yaml:"variables"`
	VariablePairs      []string          `yaml:"-"` // --perfana-variable key=value
	AssertResults      bool              `yaml:"assert_results"`
	HeartbeatPeriod    time.Duration     `yaml:"heartbeat_period"`
	PollDelay          time.Duration     `yaml:"poll_delay"`
	PollAttempts       int               `yaml:"poll_attempts"`
}

// UploadConfig configures artifact upload after the run.
type UploadConfig struct {
	Provider  string `yaml:"provider"` // empty = disabled, "minio"
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"` // object key prefix, "{run_id}" is replaced
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// JMeter
		JMeterHome:    "target/jmeter",
		JavaRuntime:   "java",
		InitialHeapMB: 512,
		MaxHeapMB:     512,

		// Test files
		TestFilesDirectory: "src/test/jmeter",
		TestFilesIncluded:  []string{"**/*.jmx"},

		// Results
		ResultsDirectory:     "target/jmeter/results",
		ResultsFormat:        "csv",
		TestResultsTimestamp: true,
		GenerateReports:      true,
		ReportDirectory:      "target/jmeter/reports",
		LogsDirectory:        "target/jmeter/logs",
		TestConfigFile:       "target/config.json",

		// Result checking
		ScanResultsForSuccessfulRequests: true,
		ScanResultsForFailedRequests:     true,

		// Monitoring
		Perfana: PerfanaConfig{
			URL:                "UNKNOWN_PERFANA_URL",
			Application:        "UNKNOWN_APPLICATION",
			TestType:           "UNKNOWN_TEST_TYPE",
			TestEnvironment:    "UNKNOWN_TEST_ENVIRONMENT",
			ApplicationRelease: "UNKNOWN_APPLICATION_RELEASE",
			ConstantLoad:       120 * time.Second,
			HeartbeatPeriod:    15 * time.Second,
			PollDelay:          10 * time.Second,
			PollAttempts:       12,
		},

		// Observability
		LogFormat: "json",
		LogLevel:  "info",
	}
}

// ResultsCSV reports whether result files are written as CSV.
func (c *Config) ResultsCSV() bool {
	return c.ResultsFormat != "xml"
}
