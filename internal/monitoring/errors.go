package monitoring

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Start on a session that is not idle.
var ErrAlreadyStarted = errors.New("cannot start monitoring session multiple times")

// RetrievalKind tells why the assertion poll gave up.
type RetrievalKind int

const (
	// KindStatusExhausted means every attempt got a non-200 status.
	KindStatusExhausted RetrievalKind = iota
	// KindTransport means a request failed below HTTP.
	KindTransport
)

func (k RetrievalKind) String() string {
	switch k {
	case KindStatusExhausted:
		return "status_exhausted"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// AssertionRetrievalError is returned when benchmark results could not be
// fetched from the monitoring service.
type AssertionRetrievalError struct {
	URL        string
	Kind       RetrievalKind
	Attempts   int
	LastStatus int
	Err        error
}

func (e *AssertionRetrievalError) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("unable to retrieve assertions for url [%s]: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("unable to retrieve assertions for url [%s]: status %d after %d attempts",
			e.URL, e.LastStatus, e.Attempts)
	}
}

func (e *AssertionRetrievalError) Unwrap() error {
	return e.Err
}
