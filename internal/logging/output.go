package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 64 * 1024

	// MaxBufferedLines is the number of recent lines kept for the exit summary.
	MaxBufferedLines = 100
)

// OutputHandler consumes the merged stdout/stderr stream of the load
// generator. Every line is echoed to the sink, kept in a ring buffer for
// the exit summary and classified so problems show up in the run log.
type OutputHandler struct {
	sink    io.Writer
	logger  *slog.Logger
	verbose bool
	onLine  func(line string)

	mu         sync.Mutex
	buffer     []string
	bufIdx     int
	lines      int64
	errorLines int64
}

// NewOutputHandler creates a handler echoing lines to sink.
// A nil sink drops the echo but still buffers and classifies.
func NewOutputHandler(sink io.Writer, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		sink:    sink,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// OnLine registers a hook called for every line. Must be set before
// HandleReader starts.
func (h *OutputHandler) OnLine(fn func(line string)) {
	h.onLine = fn
}

// HandleReader reads r until EOF. Run it in its own goroutine.
// Lines longer than MaxLineLength are truncated and the remainder is
// discarded, so the pipe keeps draining whatever the child writes.
func (h *OutputHandler) HandleReader(r io.Reader) {
	br := bufio.NewReaderSize(r, 4096)
	line := make([]byte, 0, 4096)

	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := MaxLineLength + 1 - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}
		if err != nil {
			if len(line) > 0 {
				h.HandleLine(string(line))
			}
			if !errors.Is(err, io.EOF) {
				h.logger.Warn("output_read_failed", "error", err)
			}
			return
		}
		if isPrefix {
			continue
		}
		h.HandleLine(string(line))
		line = line[:0]
	}
}

// HandleLine processes a single line of child output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	level := ClassifyLine(line)

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.lines++
	if level >= slog.LevelWarn {
		h.errorLines++
	}
	if h.sink != nil {
		fmt.Fprintln(h.sink, line)
	}
	h.mu.Unlock()

	if h.onLine != nil {
		h.onLine(line)
	}

	if !h.verbose && level < slog.LevelWarn {
		return
	}
	h.logger.Log(context.Background(), level, "jmeter_output", "line", line)
}

// ClassifyLine maps a JMeter console or log line to a log level. Problem
// lines are Warn, everything else Debug.
func ClassifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(line, " ERROR ") ||
		strings.HasPrefix(line, "ERROR") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "could not") {
		return slog.LevelWarn
	}

	if strings.Contains(line, " WARN ") ||
		strings.HasPrefix(line, "WARN") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// Lines returns the number of lines handled so far.
func (h *OutputHandler) Lines() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lines
}

// ErrorLines returns the number of lines classified as warnings or errors.
func (h *OutputHandler) ErrorLines() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errorLines
}
