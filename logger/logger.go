// Package logger implements a bounded, in-memory ring of log entries shared
// by the components that log (the bus, the VIA, the emulator and cmd/snow).
// Components log through here rather
// than the standard library's log package so that the debugger and RPC
// status surface can tail recent activity without reading a file.
package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission is consulted before an entry is appended. Components that want
// to suppress logging under some condition (rate limiting, a disabled
// subsystem) implement this rather than guarding every call site.
type Permission interface {
	AllowLogging() bool
}

// alwaysAllow is the Permission used by Allow.
type alwaysAllow struct{}

func (alwaysAllow) AllowLogging() bool { return true }

// Allow is a Permission that always allows logging.
var Allow Permission = alwaysAllow{}

type entry struct {
	tag    string
	detail string
}

func (e entry) String() string {
	return fmt.Sprintf("%s: %s", e.tag, e.detail)
}

// Logger is a fixed-capacity, append-only ring of log entries.
type Logger struct {
	mu      sync.Mutex
	entries []entry
	cap     int
	next    int
	count   int
}

// NewLogger creates a Logger that retains at most size entries, discarding
// the oldest entry once full.
func NewLogger(size int) *Logger {
	if size <= 0 {
		size = 1
	}
	return &Logger{
		entries: make([]entry, size),
		cap:     size,
	}
}

func formatDetail(detail interface{}) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Log appends an entry if perm allows logging.
func (l *Logger) Log(perm Permission, tag string, detail interface{}) {
	if perm == nil || !perm.AllowLogging() {
		return
	}
	l.append(tag, formatDetail(detail))
}

// Logf appends a formatted entry if perm allows logging.
func (l *Logger) Logf(perm Permission, tag string, format string, args ...interface{}) {
	if perm == nil || !perm.AllowLogging() {
		return
	}
	l.append(tag, fmt.Sprintf(format, args...))
}

func (l *Logger) append(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry{tag: tag, detail: detail}
	l.next = (l.next + 1) % l.cap
	if l.count < l.cap {
		l.count++
	}
}

// ordered returns entries oldest-first.
func (l *Logger) ordered() []entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]entry, l.count)
	start := l.next - l.count
	for start < 0 {
		start += l.cap
	}
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(start+i)%l.cap]
	}
	return out
}

// Write writes every retained entry to w, oldest first, one per line.
func (l *Logger) Write(w io.Writer) {
	var s strings.Builder
	for _, e := range l.ordered() {
		s.WriteString(e.String())
		s.WriteByte('\n')
	}
	io.WriteString(w, s.String())
}

// Tail writes at most n of the most recently retained entries to w, oldest
// first. A request for more entries than are retained writes everything.
func (l *Logger) Tail(w io.Writer, n int) {
	all := l.ordered()
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	var s strings.Builder
	for _, e := range all[len(all)-n:] {
		s.WriteString(e.String())
		s.WriteByte('\n')
	}
	io.WriteString(w, s.String())
}

// Clear empties the logger.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.count = 0
}

// ErrNotFound signals that no logger instance is available. No function in
// this package returns it; Write and Tail return nothing.
var ErrNotFound = errors.New("logger: no logger instance")
