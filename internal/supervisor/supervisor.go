package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-jmeter-runner/internal/logging"
	"github.com/randomizedcoder/go-jmeter-runner/internal/process"
)

// drainTimeout bounds how long we wait for output after the process exits.
// A grandchild holding the pipe open must not block the run.
const drainTimeout = 5 * time.Second

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the process state changes.
	OnStateChange func(oldState, newState State)

	// OnStart is called once the process has been spawned.
	OnStart func(pid int)

	// OnExit is called when the process exits.
	OnExit func(exitCode int, uptime time.Duration)

	// OnOutput is called for every line of merged child output.
	OnOutput func(line string)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Logger *slog.Logger

	// Output receives the merged stdout/stderr of the child. Nil discards it.
	Output io.Writer

	// Verbose logs every output line, not only warnings.
	Verbose bool

	Callbacks Callbacks
}

// Supervisor launches load generator processes one at a time.
type Supervisor struct {
	logger    *slog.Logger
	output    io.Writer
	verbose   bool
	callbacks Callbacks

	state   State
	stateMu sync.RWMutex
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logger:    logger,
		output:    cfg.Output,
		verbose:   cfg.Verbose,
		callbacks: cfg.Callbacks,
		state:     StateCreated,
	}
}

// ExitStatus describes how a process ended.
type ExitStatus struct {
	PID      int
	ExitCode int
	Uptime   time.Duration
}

// Handle refers to a started process.
type Handle struct {
	pid       int
	args      []string
	dir       string
	startTime time.Time
	output    *logging.OutputHandler
	logger    *slog.Logger

	done   chan struct{}
	status ExitStatus
	err    error
}

// PID returns the process id.
func (h *Handle) PID() int { return h.pid }

// Args returns the argument vector the process was started with.
func (h *Handle) Args() []string { return h.args }

// WorkingDirectory returns the resolved working directory.
func (h *Handle) WorkingDirectory() string { return h.dir }

// Output returns the handler consuming the process output.
func (h *Handle) Output() *logging.OutputHandler { return h.output }

// Done is closed when the process has exited and its output is drained.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits. If ctx is cancelled first, Wait
// returns ErrInterrupted and the process keeps running.
func (h *Handle) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-h.done:
		return h.status, h.err
	case <-ctx.Done():
		h.logger.Info("stopping",
			"reason", "termination signal received",
			"pid", h.pid,
		)
		return ExitStatus{PID: h.pid, Uptime: time.Since(h.startTime)}, ErrInterrupted
	}
}

// Start resolves the working directory, builds the argument vector and
// spawns the process with stdout and stderr merged into one stream.
func (s *Supervisor) Start(spec process.ProcessSpec) (*Handle, error) {
	s.setState(StateStarting)

	dir, err := resolveWorkingDirectory(spec.WorkingDirectory)
	if err != nil {
		s.setState(StateFailed)
		return nil, &ConfigurationError{Field: "working_directory", Value: spec.WorkingDirectory, Err: err}
	}

	args, err := process.BuildArgs(spec)
	if err != nil {
		s.setState(StateFailed)
		return nil, &ConfigurationError{Field: "java_runtime", Value: spec.JVM.JavaRuntime, Err: err}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		s.setState(StateFailed)
		return nil, &StartupError{Args: args, WorkingDirectory: dir, Err: fmt.Errorf("output pipe: %w", err)}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	// Own process group: a Ctrl+C aimed at us must not reach the load generator.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		s.setState(StateFailed)
		s.logger.Error("failed_to_start_process",
			"args", args,
			"working_directory", dir,
			"error", err,
		)
		return nil, &StartupError{Args: args, WorkingDirectory: dir, Err: err}
	}
	// The child holds its own copy; closing ours gives EOF when it exits.
	pw.Close()

	h := &Handle{
		pid:       cmd.Process.Pid,
		args:      args,
		dir:       dir,
		startTime: startTime,
		output:    logging.NewOutputHandler(s.output, s.logger, s.verbose),
		logger:    s.logger,
		done:      make(chan struct{}),
	}
	if s.callbacks.OnOutput != nil {
		h.output.OnLine(s.callbacks.OnOutput)
	}

	s.setState(StateRunning)
	s.logger.Info("process_started",
		"pid", h.pid,
		"working_directory", dir,
	)
	s.logger.Debug("process_args", "args", args)

	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(h.pid)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.output.HandleReader(pr)
	}()

	go s.reap(cmd, pr, readerDone, h)

	return h, nil
}

// reap waits for the process, drains its output and publishes the status.
func (s *Supervisor) reap(cmd *exec.Cmd, pr *os.File, readerDone <-chan struct{}, h *Handle) {
	waitErr := cmd.Wait()
	uptime := time.Since(h.startTime)
	exitCode := extractExitCode(waitErr)

	select {
	case <-readerDone:
	case <-time.After(drainTimeout):
		s.logger.Warn("output_drain_timeout",
			"pid", h.pid,
			"timeout", drainTimeout.String(),
		)
	}
	pr.Close()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		h.err = fmt.Errorf("wait for pid %d: %w", h.pid, waitErr)
	}
	h.status = ExitStatus{PID: h.pid, ExitCode: exitCode, Uptime: uptime}

	s.logger.Info("process_exited",
		"pid", h.pid,
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)

	s.setState(StateExited)
	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(exitCode, uptime)
	}

	close(h.done)
}

// Run starts spec and, unless runInBackground is set, waits for it.
// A background run returns as soon as the process is spawned.
func (s *Supervisor) Run(ctx context.Context, spec process.ProcessSpec, runInBackground bool) (*Handle, ExitStatus, error) {
	h, err := s.Start(spec)
	if err != nil {
		return nil, ExitStatus{}, err
	}

	if runInBackground {
		s.logger.Info("process_running_in_background", "pid", h.pid)
		return h, ExitStatus{PID: h.pid}, nil
	}

	status, err := h.Wait(ctx)
	return h, status, err
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// resolveWorkingDirectory returns the absolute, symlink-free form of dir.
// An empty dir means the current directory.
func resolveWorkingDirectory(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New("not a directory")
	}
	return resolved, nil
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	return 1
}
