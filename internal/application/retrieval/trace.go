package retrieval

import (
	"fmt"
	"strings"
)

// MaxTraceLines caps the number of trace lines returned to clients.
const MaxTraceLines = 4

// Trace collects human-readable notes on how evidence was found.
// Duplicate lines are dropped and at most MaxTraceLines are kept.
type Trace struct {
	lines []string
}

// Add appends line unless it is empty, already present or the trace is full.
func (t *Trace) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || len(t.lines) >= MaxTraceLines {
		return
	}
	for _, l := range t.lines {
		if l == line {
			return
		}
	}
	t.lines = append(t.lines, line)
}

// Addf formats and appends a line.
func (t *Trace) Addf(format string, args ...any) {
	t.Add(fmt.Sprintf(format, args...))
}

// Reset drops every line.
func (t *Trace) Reset() {
	t.lines = nil
}

// Lines returns a copy of the lines, never nil.
func (t *Trace) Lines() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
