package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-jmeter-runner/internal/config"
	"github.com/randomizedcoder/go-jmeter-runner/internal/logging"
)

// =============================================================================
// Test helpers
// =============================================================================

// fakeJava stands in for the java runtime. It answers -version, skips the
// JVM flags and the jar, then "runs" the plan given with -t: lines starting
// with '#' are directives, every other line is written to the -l file.
const fakeJava = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo 'openjdk version "17.0.9" 2023-10-17' >&2
  exit 0
fi
while [ "$#" -gt 0 ] && [ "$1" != "-jar" ]; do shift; done
shift 2
plan=""; results=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    -t) plan="$2"; shift ;;
    -l) results="$2"; shift ;;
  esac
  shift
done
[ -n "$plan" ] || exit 0
echo "summary =      2 in 00:00:01 =    2.0/s Avg:    10 Min:     5 Max:    15 Err:     0 (0.00%)"
nap=$(sed -n 's/^#sleep //p' "$plan")
[ -z "$nap" ] || sleep "$nap"
[ -z "$results" ] || grep -v '^#' "$plan" > "$results"
code=$(sed -n 's/^#exit //p' "$plan")
exit ${code:-0}
`

const (
	csvHeader = "timeStamp,elapsed,label,responseCode,success\n"
	passPlan  = csvHeader + "1,10,home,200,true\n2,20,home,200,true\n"
	failPlan  = csvHeader + "1,10,home,200,true\n2,20,home,500,false\n"
)

// testEnv is a workspace with a fake JMeter installation.
type testEnv struct {
	root string
	cfg  *config.Config
	out  *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	home := filepath.Join(root, "jmeter")
	writeFile(t, filepath.Join(home, "bin", "ApacheJMeter.jar"), "")
	java := filepath.Join(root, "java")
	writeFile(t, java, fakeJava)
	if err := os.Chmod(java, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.JMeterHome = home
	cfg.JavaRuntime = java
	cfg.TestFilesDirectory = filepath.Join(root, "tests")
	cfg.ResultsDirectory = filepath.Join(root, "results")
	cfg.LogsDirectory = filepath.Join(root, "logs")
	cfg.ReportDirectory = filepath.Join(root, "reports")
	cfg.TestConfigFile = filepath.Join(root, "target", "config.json")
	cfg.TestResultsTimestamp = false
	cfg.GenerateReports = false
	cfg.SkipPreflight = true
	cfg.Perfana.TestRunID = "run-1"
	cfg.Perfana.Application = "shop"
	cfg.Perfana.HeartbeatPeriod = 20 * time.Millisecond
	cfg.Perfana.PollDelay = time.Millisecond

	return &testEnv{root: root, cfg: cfg, out: &bytes.Buffer{}}
}

// plan writes a test plan under the test files directory.
func (e *testEnv) plan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.cfg.TestFilesDirectory, name)
	writeFile(t, path, content)
	return path
}

func (e *testEnv) orchestrator(opts Options) *Orchestrator {
	opts.Out = e.out
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	return New(e.cfg, logging.Discard(), opts)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// gatherValue returns the value of the first sample of the named metric.
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// fakePerfana records POST /test bodies and answers benchmark queries.
type fakePerfana struct {
	mu      sync.Mutex
	notices []map[string]any

	benchmarkStatus int
	benchmarkBody   string
}

func newFakePerfana(t *testing.T) (*fakePerfana, *httptest.Server) {
	t.Helper()
	f := &fakePerfana{benchmarkStatus: http.StatusOK, benchmarkBody: "{}"}
	srv := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePerfana) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/test":
		body, _ := io.ReadAll(r.Body)
		var notice map[string]any
		_ = json.Unmarshal(body, &notice)
		f.mu.Lock()
		f.notices = append(f.notices, notice)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case strings.HasPrefix(r.URL.Path, "/get-benchmark-results/"):
		f.mu.Lock()
		status, body := f.benchmarkStatus, f.benchmarkBody
		f.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// completions returns how many notices had completed=true.
func (f *fakePerfana) completions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, notice := range f.notices {
		if notice["completed"] == true {
			n++
		}
	}
	return n
}
