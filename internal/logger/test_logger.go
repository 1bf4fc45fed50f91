package logger

import (
	"fmt"
	"maps"
	"sync"
)

// TestLogger records entries in memory for assertions. Loggers derived with
// WithFields share the parent's recording, so a test can hold the root logger
// and still observe entries written through derived ones.
type TestLogger struct {
	recording *recording
	fields    Fields
}

type recording struct {
	mu      sync.RWMutex
	entries []TestLogEntry
}

type TestLogEntry struct {
	Level   string
	Message string
	Fields  Fields
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		recording: &recording{},
		fields:    make(Fields),
	}
}

func (l *TestLogger) record(level string, args ...any) {
	l.recording.mu.Lock()
	defer l.recording.mu.Unlock()

	fields := make(Fields, len(l.fields))
	maps.Copy(fields, l.fields)

	l.recording.entries = append(l.recording.entries, TestLogEntry{
		Level:   level,
		Message: fmt.Sprint(args...),
		Fields:  fields,
	})
}

func (l *TestLogger) Trace(args ...any) { l.record("trace", args...) }
func (l *TestLogger) Debug(args ...any) { l.record("debug", args...) }
func (l *TestLogger) Info(args ...any)  { l.record("info", args...) }
func (l *TestLogger) Warn(args ...any)  { l.record("warn", args...) }
func (l *TestLogger) Error(args ...any) { l.record("error", args...) }
func (l *TestLogger) Fatal(args ...any) { l.record("fatal", args...) }

func (l *TestLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)

	return &TestLogger{
		recording: l.recording,
		fields:    merged,
	}
}

func (l *TestLogger) WithField(key string, value any) Logger {
	return l.WithFields(Fields{key: value})
}

func (l *TestLogger) WithError(err error) Logger {
	return l.WithFields(Fields{"error": err})
}

// Entries returns a copy of everything recorded so far.
func (l *TestLogger) Entries() []TestLogEntry {
	l.recording.mu.RLock()
	defer l.recording.mu.RUnlock()
	return append([]TestLogEntry(nil), l.recording.entries...)
}

// HasEntry reports whether an entry with the exact level and message was
// recorded.
func (l *TestLogger) HasEntry(level, message string) bool {
	for _, entry := range l.Entries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
