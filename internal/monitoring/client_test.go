package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://perfana:4000//"})

	if c.BaseURL() != "http://perfana:4000" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.config.Timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", c.config.Timeout)
	}
}

func TestClient_BenchmarkResultsURL(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://perfana"})

	tests := []struct {
		app, id string
		want    string
	}{
		{"app", "run-1", "http://perfana/get-benchmark-results/app/run-1"},
		{"my app", "run 1", "http://perfana/get-benchmark-results/my%20app/run%201"},
		{"a+b", "x/y", "http://perfana/get-benchmark-results/a%2Bb/x%2Fy"},
		{"ünï", "1", "http://perfana/get-benchmark-results/%C3%BCn%C3%AF/1"},
	}
	for _, tt := range tests {
		if got := c.BenchmarkResultsURL(tt.app, tt.id); got != tt.want {
			t.Errorf("BenchmarkResultsURL(%q, %q) = %q, want %q", tt.app, tt.id, got, tt.want)
		}
	}
}

func TestClient_PostTestBody(t *testing.T) {
	var raw map[string]any
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("invalid JSON body: %v", err)
		}
	}))
	defer srv.Close()

	meta := testMetadata()
	meta.Annotations = "nightly"
	meta.Variables = map[string]string{"users": "10", "host": "shop"}

	c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: "secret"})
	if err := c.PostTest(context.Background(), meta, true); err != nil {
		t.Fatalf("PostTest() error = %v", err)
	}

	want := map[string]any{
		"testRunId":          "run 1",
		"testType":           "load",
		"testEnvironment":    "acc",
		"application":        "my app",
		"applicationRelease": "1.0.0",
		"CIBuildResultsUrl":  "http://ci/42",
		"rampUp":             "30",
		"duration":           "120",
		"completed":          true,
		"annotations":        "nightly",
	}
	for k, v := range want {
		if raw[k] != v {
			t.Errorf("%s = %v, want %v", k, raw[k], v)
		}
	}

	vars, ok := raw["variables"].([]any)
	if !ok || len(vars) != 2 {
		t.Fatalf("variables = %v", raw["variables"])
	}
	first := vars[0].(map[string]any)
	if first["placeholder"] != "host" || first["value"] != "shop" {
		t.Errorf("variables not sorted by key: %v", vars)
	}

	if got := header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := header.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestClient_PostTestOmitsEmptyFields(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header sent without token")
		}
	}))
	defer srv.Close()

	if err := NewClient(ClientConfig{BaseURL: srv.URL}).PostTest(context.Background(), testMetadata(), false); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["variables"]; ok {
		t.Error("variables should be omitted when empty")
	}
	if _, ok := raw["annotations"]; ok {
		t.Error("annotations should be omitted when empty")
	}
	if raw["completed"] != false {
		t.Errorf("completed = %v, want false", raw["completed"])
	}
}

func TestClient_PostTestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewClient(ClientConfig{BaseURL: srv.URL}).PostTest(context.Background(), testMetadata(), false); err == nil {
		t.Error("PostTest() should fail on 502")
	}
}

func TestRunMetadata_PlannedDuration(t *testing.T) {
	m := RunMetadata{RampUp: 10 * time.Second, ConstantLoad: 2 * time.Minute}
	if got := m.PlannedDuration(); got != 130*time.Second {
		t.Errorf("PlannedDuration() = %v, want 2m10s", got)
	}
}
