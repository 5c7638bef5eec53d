// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-jmeter-runner/internal/process"
)

// probeTimeout bounds the "java -version" probe.
const probeTimeout = 15 * time.Second

// minFileDescriptors is what a JMeter JVM with a modest thread group needs:
// sockets, result and log files, jars on the class path.
const minFileDescriptors = 1024

// minJavaMajor is the oldest runtime current JMeter releases start on.
const minJavaMajor = 8

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options names everything the checks look at.
type Options struct {
	JavaRuntime        string
	JMeterHome         string
	RuntimeJar         string
	TestFilesDirectory string

	// OutputDirectories are created if missing and must be writable.
	OutputDirectories []string

	// SkipJar skips the jar lookup, e.g. for the results-only phase.
	SkipJar bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Failed returns the checks that did not pass.
func (r *Result) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4+len(opts.OutputDirectories)),
		Passed: true,
	}

	result.add(checkFileDescriptors())
	result.add(checkJavaRuntime(ctx, opts.JavaRuntime))
	if !opts.SkipJar {
		result.add(checkRuntimeJar(opts.JMeterHome, opts.RuntimeJar))
	}
	if opts.TestFilesDirectory != "" {
		result.add(checkTestDirectory(opts.TestFilesDirectory))
	}
	for _, dir := range opts.OutputDirectories {
		result.add(checkOutputDirectory(dir))
	}

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	actual := int(limit.Cur)
	if limit.Cur > uint64(1<<31-1) {
		actual = 1<<31 - 1
	}

	// A low limit rarely breaks a small test, so it only warns.
	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (recommend %d)", actual, minFileDescriptors),
	}
}

// checkJavaRuntime verifies the java runtime starts and is recent enough.
func checkJavaRuntime(ctx context.Context, javaRuntime string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := process.ProbeRuntime(ctx, javaRuntime)
	if err != nil {
		return Check{
			Name:    "java_runtime",
			Passed:  false,
			Message: err.Error(),
		}
	}

	if info.Major > 0 && info.Major < minJavaMajor {
		return Check{
			Name:    "java_runtime",
			Passed:  false,
			Message: fmt.Sprintf("%s is version %s, need %d or newer", info.Path, info.Version, minJavaMajor),
		}
	}

	return Check{
		Name:    "java_runtime",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", info.Path, info.Version),
	}
}

// checkRuntimeJar verifies the JMeter jar exists.
func checkRuntimeJar(home, jar string) Check {
	path, err := process.FindRuntimeJar(home, jar)
	if err != nil {
		return Check{Name: "runtime_jar", Passed: false, Message: err.Error()}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "runtime_jar", Passed: false, Message: err.Error()}
	}
	if info.IsDir() {
		return Check{Name: "runtime_jar", Passed: false, Message: path + " is a directory"}
	}

	return Check{Name: "runtime_jar", Passed: true, Message: path}
}

// checkTestDirectory warns when there is nothing to run. A missing test
// directory skips the tests rather than failing the run.
func checkTestDirectory(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Check{
			Name:    "test_files_directory",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s does not exist, tests will be skipped", dir),
		}
	}
	return Check{Name: "test_files_directory", Passed: true, Message: dir}
}

// checkOutputDirectory creates dir if needed and verifies it is writable.
func checkOutputDirectory(dir string) Check {
	name := "output_directory"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}

	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{Name: name, Passed: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return Check{Name: name, Passed: true, Message: abs}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 4096 (or edit /etc/security/limits.conf)"
	case "java_runtime":
		return "install a JDK or point --java / JAVA_HOME at one"
	case "runtime_jar":
		return "set --jmeter-home to a JMeter installation or --runtime-jar to the jar"
	case "output_directory":
		return "check permissions on the results, logs and report directories"
	default:
		return "see documentation"
	}
}
