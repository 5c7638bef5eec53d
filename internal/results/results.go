// Package results classifies load test result files as passing or failing.
//
// A result file is a sequence of sample records, each tagged success or
// failure. JMeter writes them either as CSV (a "success" column) or as XML
// (an "s" attribute on every sample element).
package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Format is the on-disk layout of a result file.
type Format int

const (
	// FormatCSV is JMeter's CSV result format.
	FormatCSV Format = iota

	// FormatXML is JMeter's XML (.jtl) result format.
	FormatXML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}

// ParseFormat converts "csv" or "xml" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "xml", "jtl":
		return FormatXML, nil
	default:
		return FormatCSV, fmt.Errorf("unknown result format %q", s)
	}
}

// FormatFromCSVFlag maps the side-file boolean to a Format.
func FormatFromCSVFlag(csv bool) Format {
	if csv {
		return FormatCSV
	}
	return FormatXML
}

// Tally counts the records of one file.
type Tally struct {
	Success int64
	Failure int64
}

// Add returns the sum of t and o.
func (t Tally) Add(o Tally) Tally {
	return Tally{Success: t.Success + o.Success, Failure: t.Failure + o.Failure}
}

// LatencySummary holds response time percentiles across all scanned files.
type LatencySummary struct {
	Count int64
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Report is the outcome of scanning a set of result files.
type Report struct {
	// FilesScanned counts every file handed to the scanner, including
	// files that were skipped because they could not be read.
	FilesScanned int

	// Skipped lists files that could not be read or parsed.
	Skipped []string

	Tally
	Latency LatencySummary
}

// Total returns the number of counted records.
func (r Report) Total() int64 {
	return r.Success + r.Failure
}

// FailurePercent returns the failure share as a percentage rounded to two
// decimal places. It is zero when nothing was counted.
func (r Report) FailurePercent() decimal.Decimal {
	total := r.Total()
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.Failure).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 2)
}

// Decide returns true when the run passes on local results: failures are
// ignored by configuration, or there are none.
func Decide(failures int64, ignoreFailures bool) bool {
	return ignoreFailures || failures == 0
}
