package monitoring

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

// RunMetadata describes the run registered with the monitoring service.
type RunMetadata struct {
	Application        string
	TestType           string
	TestEnvironment    string
	TestRunID          string
	ApplicationRelease string
	CIBuildResultsURL  string
	RampUp             time.Duration
	ConstantLoad       time.Duration
	Annotations        string
	Variables          map[string]string
	AssertResults      bool
}

// PlannedDuration is the ramp-up plus the constant-load time.
func (m RunMetadata) PlannedDuration() time.Duration {
	return m.RampUp + m.ConstantLoad
}

func (m RunMetadata) clone() RunMetadata {
	c := m
	c.Variables = maps.Clone(m.Variables)
	return c
}

// testPayload is the body of POST {base}/test.
type testPayload struct {
	TestRunID          string     `json:"testRunId"`
	TestType           string     `json:"testType"`
	TestEnvironment    string     `json:"testEnvironment"`
	Application        string     `json:"application"`
	ApplicationRelease string     `json:"applicationRelease"`
	CIBuildResultsURL  string     `json:"CIBuildResultsUrl"`
	RampUp             string     `json:"rampUp"`
	Duration           string     `json:"duration"`
	Completed          bool       `json:"completed"`
	Variables          []variable `json:"variables,omitempty"`
	Annotations        string     `json:"annotations,omitempty"`
}

type variable struct {
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

func (m RunMetadata) payload(completed bool) testPayload {
	p := testPayload{
		TestRunID:          m.TestRunID,
		TestType:           m.TestType,
		TestEnvironment:    m.TestEnvironment,
		Application:        m.Application,
		ApplicationRelease: m.ApplicationRelease,
		CIBuildResultsURL:  m.CIBuildResultsURL,
		RampUp:             seconds(m.RampUp),
		Duration:           seconds(m.PlannedDuration()),
		Completed:          completed,
		Annotations:        m.Annotations,
	}
	for _, k := range slices.Sorted(maps.Keys(m.Variables)) {
		p.Variables = append(p.Variables, variable{Placeholder: k, Value: m.Variables[k]})
	}
	return p
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
