// Package process builds the command lines used to launch the load generator.
package process

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoRuntime is returned when a ProcessSpec names no runtime executable.
var ErrNoRuntime = errors.New("process: runtime executable is not set")

// JVMSettings holds the settings for the load generator's JVM.
type JVMSettings struct {
	// JavaRuntime is the java executable.
	JavaRuntime string

	// InitialHeapMB and MaxHeapMB become -Xms<n>M and -Xmx<n>M.
	InitialHeapMB int
	MaxHeapMB     int

	// Arguments are extra JVM flags placed after the heap flags.
	Arguments []string
}

// DefaultJVMSettings returns the settings used when nothing is configured.
func DefaultJVMSettings() JVMSettings {
	return JVMSettings{
		JavaRuntime:   "java",
		InitialHeapMB: 512,
		MaxHeapMB:     512,
	}
}

// ProcessSpec fully describes one load generator launch.
// Build it once per run; BuildArgs never modifies it.
type ProcessSpec struct {
	JVM JVMSettings

	// RuntimeJar is passed to -jar.
	RuntimeJar string

	// Arguments are the main arguments after the jar.
	Arguments []string

	// WorkingDirectory is the child's cwd. It is resolved by the supervisor.
	WorkingDirectory string
}

// BuildArgs returns the full argument vector, runtime first:
//
//	java -Xms<n>M -Xmx<n>M <jvm args...> -jar <jar> <main args...>
func BuildArgs(spec ProcessSpec) ([]string, error) {
	if spec.JVM.JavaRuntime == "" {
		return nil, ErrNoRuntime
	}

	args := make([]string, 0, 5+len(spec.JVM.Arguments)+len(spec.Arguments))
	args = append(args,
		spec.JVM.JavaRuntime,
		"-Xms"+strconv.Itoa(spec.JVM.InitialHeapMB)+"M",
		"-Xmx"+strconv.Itoa(spec.JVM.MaxHeapMB)+"M",
	)
	args = append(args, spec.JVM.Arguments...)
	args = append(args, "-jar", spec.RuntimeJar)
	args = append(args, spec.Arguments...)

	return args, nil
}

// CommandString returns the command that would be executed, for display.
func CommandString(spec ProcessSpec) string {
	args, err := BuildArgs(spec)
	if err != nil {
		return "# " + err.Error()
	}

	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shellQuote quotes a for copy-pasting into a POSIX shell.
func shellQuote(a string) string {
	if a == "" {
		return "''"
	}
	if !strings.ContainsAny(a, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
		return a
	}
	return "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
}
