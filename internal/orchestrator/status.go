package orchestrator

import (
	"sync"
	"time"

	"github.com/randomizedcoder/go-jmeter-runner/internal/monitoring"
	"github.com/randomizedcoder/go-jmeter-runner/internal/results"
)

// Phase is the coarse stage a run is in.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseChecking Phase = "checking"
	PhaseDone     Phase = "done"
)

// Status is a point-in-time snapshot of a run, safe to read from other
// goroutines such as the dashboard.
type Status struct {
	Phase     Phase
	StartTime time.Time
	Planned   time.Duration

	TestFiles   int
	Completed   int
	CurrentTest string
	PID         int

	Monitoring        bool
	SessionState      monitoring.State
	Heartbeats        int64
	HeartbeatFailures int64
	PollAttempts      int

	// Interval and Total are the latest summariser readings.
	Interval results.Summariser
	Total    results.Summariser

	OutputLines  int64
	ProblemLines int64
	LastLine     string

	Verdict *Verdict
}

// Elapsed returns the time since the run started.
func (s Status) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

type statusTracker struct {
	mu sync.RWMutex
	s  Status
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.s
}

func (t *statusTracker) update(fn func(s *Status)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}
