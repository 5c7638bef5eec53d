package process

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ResultsTimestampLayout prefixes or suffixes result file names.
const ResultsTimestampLayout = "20060102-150405"

// TestArguments holds the JMeter main-class arguments for one test plan.
type TestArguments struct {
	// TestFile is the .jmx plan passed to -t.
	TestFile string

	// ResultsFile is passed to -l. Unused in GUI mode.
	ResultsFile string

	// LogFile is passed to -j.
	LogFile string

	// JMeterHome is passed to -d.
	JMeterHome string

	// ReportDirectory enables -e -o <dir> when set. Unused in GUI mode.
	ReportDirectory string

	// CSV selects the CSV result format; false selects XML.
	CSV bool

	// Properties become -J<key>=<value> in sorted key order.
	Properties map[string]string

	// RootLogLevel becomes -L<level> when set.
	RootLogLevel string

	// GUI omits the non-GUI flag and result/report outputs.
	GUI bool
}

// Build returns the argument list. Map iteration is sorted so the result is
// stable for the same input.
func (a TestArguments) Build() []string {
	var args []string

	if !a.GUI {
		args = append(args, "-n")
	}
	if a.TestFile != "" {
		args = append(args, "-t", a.TestFile)
	}
	if !a.GUI && a.ResultsFile != "" {
		args = append(args, "-l", a.ResultsFile)
	}
	if a.LogFile != "" {
		args = append(args, "-j", a.LogFile)
	}
	if a.JMeterHome != "" {
		args = append(args, "-d", a.JMeterHome)
	}

	format := "xml"
	if a.CSV {
		format = "csv"
	}
	args = append(args, "-Jjmeter.save.saveservice.output_format="+format)

	keys := make([]string, 0, len(a.Properties))
	for k := range a.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-J"+k+"="+a.Properties[k])
	}

	if a.RootLogLevel != "" {
		args = append(args, "-L"+strings.ToUpper(a.RootLogLevel))
	}

	if !a.GUI && a.ReportDirectory != "" {
		args = append(args, "-e", "-o", a.ReportDirectory)
	}

	return args
}

// PlanName returns the test plan file name without directory or extension.
func PlanName(testFile string) string {
	return strings.TrimSuffix(filepath.Base(testFile), filepath.Ext(testFile))
}

// ResultFileName returns the results file name for the named test plan.
// With timestamp set the time is prepended, or appended when appendTS is set.
func ResultFileName(plan string, csv, timestamp, appendTS bool, now time.Time) string {
	base := plan

	ext := ".jtl"
	if csv {
		ext = ".csv"
	}

	if !timestamp {
		return base + ext
	}

	ts := now.Format(ResultsTimestampLayout)
	if appendTS {
		return base + "_" + ts + ext
	}
	return ts + "_" + base + ext
}
