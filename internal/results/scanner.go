package results

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Scanner counts records across a set of result files.
// It is not safe for concurrent use; each Scan call owns its state.
type Scanner struct {
	policy Policy
	logger *slog.Logger
}

// NewScanner creates a Scanner. The policy is used as given; callers
// normalize it first.
func NewScanner(policy Policy, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{policy: policy, logger: logger}
}

// Policy returns the policy the scanner counts with.
func (s *Scanner) Policy() Policy {
	return s.policy
}

// Scan parses every file in paths. A file that cannot be read or parsed is
// logged and skipped; it still counts toward FilesScanned.
func (s *Scanner) Scan(paths []string, format Format) Report {
	report := Report{FilesScanned: len(paths)}
	latency := newLatencyRecorder()

	for _, path := range paths {
		tally, samples, err := s.scanFile(path, format)
		if err != nil {
			s.logger.Warn("result_file_skipped",
				"path", path,
				"format", format.String(),
				"error", err,
			)
			report.Skipped = append(report.Skipped, path)
			continue
		}

		s.logger.Debug("result_file_scanned",
			"path", path,
			"success", tally.Success,
			"failure", tally.Failure,
		)
		report.Tally = report.Tally.Add(tally)
		latency.addAll(samples)
	}

	report.Latency = latency.summary()
	return report
}

// scanFile parses one file. Samples are returned rather than recorded so a
// file that fails half way leaves no trace in the latency digest.
func (s *Scanner) scanFile(path string, format Format) (Tally, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tally{}, nil, err
	}
	defer f.Close()

	var samples []float64
	observe := func(ms float64) { samples = append(samples, ms) }

	tally, err := scan(f, format, s.policy, observe)
	if err != nil {
		return Tally{}, nil, err
	}
	return tally, samples, nil
}

func scan(r io.Reader, format Format, policy Policy, observe func(ms float64)) (Tally, error) {
	switch format {
	case FormatCSV:
		return scanCSV(r, policy, observe)
	case FormatXML:
		return scanXML(r, policy, observe)
	default:
		return Tally{}, fmt.Errorf("unsupported result format %v", format)
	}
}
