// Package logging implements the host's append-only error log: a
// plain-text, timestamp-prefixed file plus a bounded in-memory ring of
// recent entries for the GUI/CLI layer to query.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// maxRecentErrors bounds the in-memory ring.
	maxRecentErrors = 1000

	timestampLayout = "2006-01-02 15:04:05"
)

// ErrorLog writes timestamped entries to an append-only file and keeps
// the most recent entries in memory.
type ErrorLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	recent []string
	now    func() time.Time
}

// Open opens (or creates) the log file in append mode and writes a
// session-start marker.
func Open(path string) (*ErrorLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}

	l := &ErrorLog{path: path, file: f, now: time.Now}
	fmt.Fprintf(f, "\n=== Host Started %s ===\n", l.timestamp())
	return l, nil
}

// Close writes a session-stop marker and closes the file.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	fmt.Fprintf(l.file, "=== Host Stopped %s ===\n", l.timestamp())
	err := l.file.Close()
	l.file = nil
	return err
}

// LogError appends a timestamped error entry.
func (l *ErrorLog) LogError(msg string) {
	l.append(fmt.Sprintf("[%s] ERROR: %s", l.timestamp(), msg))
}

// LogPluginCrash records a contained plugin fault.
func (l *ErrorLog) LogPluginCrash(pluginName, details string) {
	l.LogError(fmt.Sprintf("PLUGIN CRASH: %s - %s", pluginName, details))
}

// LogAudioError records an audio subsystem error.
func (l *ErrorLog) LogAudioError(msg string) {
	l.LogError("AUDIO: " + msg)
}

// RecentErrors returns up to count of the most recent entries, oldest
// first.
func (l *ErrorLog) RecentErrors(count int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count <= 0 || count > len(l.recent) {
		count = len(l.recent)
	}
	out := make([]string, count)
	copy(out, l.recent[len(l.recent)-count:])
	return out
}

// Clear truncates the log file and empties the ring.
func (l *ErrorLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent = nil

	if l.file != nil {
		l.file.Close()
	}
	f, err := os.OpenFile(l.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.file = nil
		return fmt.Errorf("truncating error log: %w", err)
	}
	l.file = f
	fmt.Fprintf(f, "=== Log Cleared %s ===\n", l.timestamp())
	return nil
}

func (l *ErrorLog) append(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent = append(l.recent, entry)
	if len(l.recent) > maxRecentErrors {
		l.recent = l.recent[len(l.recent)-maxRecentErrors:]
	}

	if l.file != nil {
		fmt.Fprintln(l.file, entry)
	}
}

func (l *ErrorLog) timestamp() string {
	return l.now().Format(timestampLayout)
}
