package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger appends timestamped lines about turns, routing, and dispatch
// to a debug log. A nil logger, or one without a writer, discards lines.
type DebugLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewDebugLogger opens logPath for appending, creating parent directories.
// An empty path returns a logger that discards everything.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := NewWriterLogger(f)
	l.Log("--- lilli pid=%d opened %s ---", os.Getpid(), time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger writes lines to w. Close closes w when it is an io.Closer.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w}
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one line prefixed with the wall-clock time.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || l.w == nil {
		return
	}
	line := time.Now().Format("15:04:05.000") + " " + fmt.Sprintf(format, args...) + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, line)
}

// Close closes the underlying writer. Later calls to Log are dropped.
func (l *DebugLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.w.(io.Closer)
	l.w = nil
	if !ok {
		return nil
	}
	return c.Close()
}
