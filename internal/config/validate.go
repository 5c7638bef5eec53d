package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-zglob"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.JavaRuntime == "" {
		errs = append(errs, ValidationError{
			Field:   "java_runtime",
			Message: "must not be empty",
		})
	}

	if cfg.InitialHeapMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "initial_heap_mb",
			Message: "must be at least 1",
		})
	}
	if cfg.MaxHeapMB < cfg.InitialHeapMB {
		errs = append(errs, ValidationError{
			Field:   "max_heap_mb",
			Message: fmt.Sprintf("must be >= initial_heap_mb (%d)", cfg.InitialHeapMB),
		})
	}

	// Result format must be valid
	validFormats := map[string]bool{"csv": true, "xml": true}
	if !validFormats[cfg.ResultsFormat] {
		errs = append(errs, ValidationError{
			Field:   "results_format",
			Message: fmt.Sprintf("must be 'csv' or 'xml' (got %q)", cfg.ResultsFormat),
		})
	}

	// The HTML report is built from CSV results
	if cfg.GenerateReports && cfg.ResultsFormat == "xml" {
		errs = append(errs, ValidationError{
			Field:   "generate_reports",
			Message: "requires results_format 'csv'",
		})
	}

	if len(cfg.TestFilesIncluded) == 0 {
		errs = append(errs, ValidationError{
			Field:   "test_files_included",
			Message: "at least one pattern is required",
		})
	}
	for _, pattern := range append(append([]string{}, cfg.TestFilesIncluded...), cfg.TestFilesExcluded...) {
		if _, err := zglob.Match(pattern, "probe.jmx"); err != nil {
			errs = append(errs, ValidationError{
				Field:   "test_files",
				Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err),
			})
		}
	}

	if cfg.TestConfigFile == "" {
		errs = append(errs, ValidationError{
			Field:   "test_config_file",
			Message: "must not be empty",
		})
	}

	if cfg.PostTestPause < 0 {
		errs = append(errs, ValidationError{
			Field:   "post_test_pause",
			Message: "must not be negative",
		})
	}

	errs = append(errs, validatePerfana(&cfg.Perfana)...)
	errs = append(errs, validateUpload(&cfg.Upload)...)

	// Log format must be valid
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validatePerfana(p *PerfanaConfig) []error {
	if !p.Enabled {
		return nil
	}
	var errs []error

	if err := validateURL(p.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "perfana.url",
			Message: err.Error(),
		})
	}
	if p.RampUp < 0 || p.ConstantLoad < 0 {
		errs = append(errs, ValidationError{
			Field:   "perfana.ramp_up",
			Message: "ramp-up and constant-load must not be negative",
		})
	}
	if p.HeartbeatPeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "perfana.heartbeat_period",
			Message: "must be positive",
		})
	}
	if p.PollAttempts < 1 {
		errs = append(errs, ValidationError{
			Field:   "perfana.poll_attempts",
			Message: "must be at least 1",
		})
	}
	return errs
}

func validateUpload(u *UploadConfig) []error {
	if u.Provider == "" {
		return nil
	}
	var errs []error

	if u.Provider != "minio" {
		errs = append(errs, ValidationError{
			Field:   "upload.provider",
			Message: fmt.Sprintf("unsupported provider %q", u.Provider),
		})
	}
	if u.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "upload.endpoint", Message: "is required"})
	}
	if u.Bucket == "" {
		errs = append(errs, ValidationError{Field: "upload.bucket", Message: "is required"})
	}
	return errs
}

// validateURL checks if the URL is valid and uses http or https.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}
