// Package monitoring registers a load-test run with a Perfana-compatible
// monitoring service, keeps it alive while the load generator runs, and
// fetches the benchmark assertions once the run is complete.
package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State represents the lifecycle of a monitoring session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Defaults used by the monitoring service API.
const (
	DefaultHeartbeatPeriod = 15 * time.Second
	DefaultPollDelay       = 10 * time.Second
	DefaultPollAttempts    = 12
)

// Callbacks for session events. All are optional and may be called from
// the heartbeat goroutine.
type Callbacks struct {
	OnStateChange func(old, new State)
	OnHeartbeat   func(completed bool, err error)
	OnPollAttempt func(attempt, status int, err error)
}

type options struct {
	heartbeatPeriod time.Duration
	pollDelay       time.Duration
	maxPollAttempts int
	logger          *slog.Logger
	callbacks       Callbacks
}

// Option configures a Session.
type Option func(*options)

// WithHeartbeatPeriod sets the keep-alive interval.
func WithHeartbeatPeriod(d time.Duration) Option {
	return func(o *options) { o.heartbeatPeriod = d }
}

// WithPollDelay sets the wait between assertion poll attempts.
func WithPollDelay(d time.Duration) Option {
	return func(o *options) { o.pollDelay = d }
}

// WithMaxPollAttempts caps the number of assertion requests.
func WithMaxPollAttempts(n int) Option {
	return func(o *options) { o.maxPollAttempts = n }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCallbacks registers event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(o *options) { o.callbacks = cb }
}

// Session is one monitoring session: Idle -> Active -> Stopped.
type Session struct {
	client    *Client
	meta      RunMetadata
	opts      options
	logger    *slog.Logger
	callbacks Callbacks

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	closed bool // no heartbeat may be sent once set
}

// NewSession creates an idle session for the given run.
func NewSession(client *Client, meta RunMetadata, opts ...Option) *Session {
	o := options{
		heartbeatPeriod: DefaultHeartbeatPeriod,
		pollDelay:       DefaultPollDelay,
		maxPollAttempts: DefaultPollAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.heartbeatPeriod <= 0 {
		o.heartbeatPeriod = DefaultHeartbeatPeriod
	}
	if o.maxPollAttempts < 1 {
		o.maxPollAttempts = 1
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Session{
		client:    client,
		meta:      meta.clone(),
		opts:      o,
		logger:    o.logger.With("test_run_id", meta.TestRunID),
		callbacks: o.callbacks,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metadata returns a copy of the run metadata.
func (s *Session) Metadata() RunMetadata {
	return s.meta.clone()
}

// Start registers the run and begins the keep-alive heartbeat. The first
// heartbeat is sent immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	hbCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	old := s.state
	s.state = StateActive
	s.mu.Unlock()

	s.notifyState(old, StateActive)
	s.logger.Info("session_started",
		"url", s.client.BaseURL(),
		"heartbeat_period", s.opts.heartbeatPeriod,
	)

	go s.heartbeatLoop(hbCtx)
	return nil
}

// Stop ends an active session: the heartbeat is cancelled, one completion
// notice is sent and, if enabled, the benchmark assertions are polled.
// Stop on a session that is not active does nothing.
func (s *Session) Stop(ctx context.Context) (AssertionOutcome, error) {
	if !s.shutdown() {
		return AssertionOutcome{}, nil
	}
	s.logger.Info("session_stopping")

	s.notify(ctx, true)

	if !s.meta.AssertResults {
		s.logger.Info("assertions_skipped", "reason", msgNotEnabled)
		return NotEnabled(), nil
	}

	body, err := s.pollAssertions(ctx)
	if err != nil {
		s.logger.Error("assertion_poll_failed", "error", err)
		return AssertionOutcome{Enabled: true}, err
	}

	outcome, err := EvaluateAssertions(body)
	if err != nil {
		return AssertionOutcome{Enabled: true}, err
	}

	s.logger.Info("assertions_evaluated",
		"passed", outcome.Passed,
		"requirements", fmtResult(outcome.Requirements),
		"previous_run", fmtResult(outcome.PreviousRun),
		"baseline", fmtResult(outcome.Baseline),
	)
	return outcome, nil
}

// Close cancels the heartbeat without sending a completion notice. It is
// safe to call at any time and after Stop.
func (s *Session) Close() {
	if s.shutdown() {
		s.logger.Debug("session_closed")
	}
}

// shutdown moves an active session to Stopped. It reports whether this call
// did the transition.
func (s *Session) shutdown() bool {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.cancel()
	s.state = StateStopped
	s.mu.Unlock()

	s.notifyState(StateActive, StateStopped)
	return true
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.heartbeatPeriod)
	defer ticker.Stop()

	s.heartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeat(ctx)
		}
	}
}

func (s *Session) heartbeat(ctx context.Context) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || ctx.Err() != nil {
		return
	}
	s.notify(ctx, false)
}

// notify sends a run-progress notice. Failures are logged and counted only.
func (s *Session) notify(ctx context.Context, completed bool) {
	err := s.client.PostTest(ctx, s.meta, completed)
	if !completed && ctx.Err() != nil {
		// stopped while the request was in flight
		return
	}
	if err != nil {
		s.logger.Warn("heartbeat_failed", "completed", completed, "error", err)
	} else {
		s.logger.Debug("heartbeat_sent", "completed", completed)
	}
	if s.callbacks.OnHeartbeat != nil {
		s.callbacks.OnHeartbeat(completed, err)
	}
}

func (s *Session) notifyState(old, new State) {
	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(old, new)
	}
}

func fmtResult(b *bool) string {
	if b == nil {
		return "n/a"
	}
	if *b {
		return "pass"
	}
	return "fail"
}
