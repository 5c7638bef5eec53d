package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go"
)

// AssertionOutcome is the remote verdict for a run. A nil result means the
// check was not evaluated.
type AssertionOutcome struct {
	Enabled bool
	Passed  bool

	Requirements     *bool
	PreviousRun      *bool
	Baseline         *bool
	RequirementsLink string
	PreviousRunLink  string
	BaselineLink     string

	Message string
}

// Failed reports whether assertions were checked and at least one failed.
func (o AssertionOutcome) Failed() bool {
	return o.Enabled && !o.Passed
}

const (
	msgNotEnabled = "Perfana assert results not enabled"
	msgFailing    = "One or more Perfana assertions are failing:"
	msgOK         = "All Perfana assertions are OK:"
)

// NotEnabled is the outcome reported when assertion checking is off.
func NotEnabled() AssertionOutcome {
	return AssertionOutcome{Passed: true, Message: msgNotEnabled}
}

type benchmarkResult struct {
	Result   *bool   `json:"result"`
	Deeplink *string `json:"deeplink"`
}

type benchmarkResults struct {
	Baseline     *benchmarkResult `json:"benchmarkBaselineTestRun"`
	PreviousRun  *benchmarkResult `json:"benchmarkPreviousTestRun"`
	Requirements *benchmarkResult `json:"requirements"`
}

func (r *benchmarkResult) values() (*bool, string) {
	if r == nil {
		return nil, ""
	}
	link := ""
	if r.Deeplink != nil {
		link = *r.Deeplink
	}
	return r.Result, link
}

// EvaluateAssertions interprets a benchmark-results payload. The run passes
// when none of the present results is false.
func EvaluateAssertions(body []byte) (AssertionOutcome, error) {
	var payload benchmarkResults
	if err := json.Unmarshal(body, &payload); err != nil {
		return AssertionOutcome{}, fmt.Errorf("decode benchmark results: %w", err)
	}

	o := AssertionOutcome{Enabled: true}
	o.Requirements, o.RequirementsLink = payload.Requirements.values()
	o.PreviousRun, o.PreviousRunLink = payload.PreviousRun.values()
	o.Baseline, o.BaselineLink = payload.Baseline.values()

	checks := []struct {
		result *bool
		link   string
		label  string
	}{
		{o.Requirements, o.RequirementsLink, "Requirements failed: "},
		{o.PreviousRun, o.PreviousRunLink, "Benchmark to previous test run failed: "},
		{o.Baseline, o.BaselineLink, "Benchmark to baseline test run failed: "},
	}

	o.Passed = true
	for _, c := range checks {
		if c.result != nil && !*c.result {
			o.Passed = false
		}
	}

	lines := []string{msgOK}
	if !o.Passed {
		lines[0] = msgFailing
	}
	for _, c := range checks {
		if c.result == nil {
			continue
		}
		switch {
		case !o.Passed && !*c.result:
			lines = append(lines, c.label+c.link)
		case o.Passed && *c.result:
			lines = append(lines, c.link)
		}
	}
	o.Message = strings.Join(lines, "\n")
	return o, nil
}

// pollAssertions fetches the benchmark results, retrying non-200 statuses
// with a fixed delay. A transport error ends the poll at once.
func (s *Session) pollAssertions(ctx context.Context) ([]byte, error) {
	endpoint := s.client.BenchmarkResultsURL(s.meta.Application, s.meta.TestRunID)

	var (
		body       []byte
		attempts   int
		lastStatus int
		transport  error
	)
	errStatus := errors.New("non-200 status")

	err := retry.Do(
		func() error {
			attempts++
			status, b, err := s.client.GetBenchmarkResults(ctx, endpoint)
			if s.callbacks.OnPollAttempt != nil {
				s.callbacks.OnPollAttempt(attempts, status, err)
			}
			if err != nil {
				transport = err
				return err
			}
			lastStatus = status
			if status != 200 {
				s.logger.Warn("assertion_poll_retry",
					"url", endpoint,
					"status", status,
					"attempt", attempts,
					"max_attempts", s.opts.maxPollAttempts,
					"message", truncate(string(b), 200),
				)
				return errStatus
			}
			body = b
			return nil
		},
		retry.Attempts(uint(s.opts.maxPollAttempts)),
		retry.Delay(s.opts.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errStatus)
		}),
	)
	if err == nil {
		return body, nil
	}

	if transport != nil {
		return nil, &AssertionRetrievalError{
			URL:        endpoint,
			Kind:       KindTransport,
			Attempts:   attempts,
			LastStatus: lastStatus,
			Err:        transport,
		}
	}
	return nil, &AssertionRetrievalError{
		URL:        endpoint,
		Kind:       KindStatusExhausted,
		Attempts:   attempts,
		LastStatus: lastStatus,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
