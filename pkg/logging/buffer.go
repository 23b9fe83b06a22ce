package logging

import (
	"strings"
	"sync"
)

// RingWriter is a thread-safe writer that keeps the last N written lines.
type RingWriter struct {
	mu    sync.RWMutex
	lines []string
	size  int
}

// RecentLogs captures recent INFO+ log lines for the HTTP log endpoint.
var RecentLogs = NewRingWriter(50)

// NewRingWriter creates a writer that retains up to size lines.
func NewRingWriter(size int) *RingWriter {
	if size < 1 {
		size = 1
	}
	return &RingWriter{size: size}
}

// Write implements io.Writer. Each call is treated as one line.
func (w *RingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lines = append(w.lines, strings.TrimRight(string(p), "\n"))
	if len(w.lines) > w.size {
		w.lines = w.lines[len(w.lines)-w.size:]
	}
	return len(p), nil
}

// Lines returns a copy of the retained lines, oldest first.
func (w *RingWriter) Lines() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}

// Last returns the most recent line or "".
func (w *RingWriter) Last() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}
