// Package logging provides the logger used by the qmail packages and the
// debug switch shared by the command line tools.
package logging

import (
	"log"
	"testing"
)

// DebugEnabled controls whether Debug() produces output.
// Set via --debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Logger is what library code logs through. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, a ...any)
}

// Std logs through the standard logger.
type Std struct{}

func (Std) Printf(format string, a ...any) { log.Printf(format, a...) }

// NoLog discards everything.
type NoLog struct{}

func (NoLog) Printf(format string, a ...any) {}

// TestLogger sends output to the test log so it only shows for failing or
// verbose runs.
type TestLogger struct {
	t      testing.TB
	prefix string
}

func NewTestLogger(t testing.TB, prefix string) *TestLogger {
	return &TestLogger{t: t, prefix: prefix}
}

func (l *TestLogger) Printf(format string, a ...any) {
	if l.prefix != "" {
		format = l.prefix + ": " + format
	}
	l.t.Helper()
	l.t.Logf(format, a...)
}

// OrStd returns l, or Std when l is nil.
func OrStd(l Logger) Logger {
	if l == nil {
		return Std{}
	}
	return l
}
