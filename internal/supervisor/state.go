// Package supervisor launches the load generator and waits for it to exit.
package supervisor

// State represents the lifecycle state of a supervised process.
type State int

const (
	// StateCreated is the initial state before Start.
	StateCreated State = iota

	// StateStarting indicates the process is being spawned.
	StateStarting

	// StateRunning indicates the process is running.
	StateRunning

	// StateExited indicates the process has exited.
	StateExited

	// StateFailed indicates the process could not be started.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the process can no longer change state.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateFailed
}
