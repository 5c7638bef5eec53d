package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned by Wait when the wait is cancelled by a
// termination signal. The child process is left running.
var ErrInterrupted = errors.New("supervisor: wait interrupted")

// ConfigurationError reports an unusable ProcessSpec, such as a working
// directory that cannot be resolved.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "working_directory" {
		return fmt.Sprintf("unable to set working directory %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// StartupError reports a failure to spawn the process. It carries the
// argument vector and working directory for diagnosis.
type StartupError struct {
	Args             []string
	WorkingDirectory string
	Err              error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to start %q in %s: %v",
		strings.Join(e.Args, " "), e.WorkingDirectory, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
