// Package hostlog is the ambient logger every core component accepts. A nil
// *Logger is a valid no-op logger so components never need to nil-check
// before logging.
package hostlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped lines to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open creates a logger appending to <stateDir>/agentcore.log. On any I/O
// failure it returns a Logger whose Printf is a no-op rather than an error,
// matching the host's policy of never failing startup over logging.
func Open(stateDir string) *Logger {
	l := &Logger{}
	if stateDir == "" {
		return l
	}
	path := filepath.Join(stateDir, "agentcore.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return l
	}
	l.file = f
	l.path = path
	return l
}

// Path returns the log file path, or "" if logging is disabled.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Printf writes one timestamped line. Safe to call on a nil *Logger.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(l.file, ts+" "+format+"\n", args...)
}

// Close releases the underlying file. Safe to call on a nil *Logger.
func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
}
