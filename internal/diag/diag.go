// Package diag provides a toggleable diagnostic logger for library code
// that needs to report failures it does not consider fatal (a failed
// reopen attempt, a trash-drain error) without forcing every caller to
// take a dependency on a specific logging library.
//
// It wraps the standard library's log.Logger rather than inventing a new
// logging interface, following the teacher's own preference for stdlib
// log at the call sites that need one.
package diag

import (
	"log"
	"os"
)

// Logger is a toggleable sink for diagnostic messages. A disabled Logger
// discards everything it is given; enabling it routes messages to an
// underlying *log.Logger.
type Logger struct {
	enabled bool
	std     *log.Logger
}

// New returns a Logger writing to os.Stderr when enabled is true, and
// discarding all output otherwise.
func New(enabled bool) *Logger {
	l := &Logger{enabled: enabled}
	if enabled {
		l.std = log.New(os.Stderr, "", log.LstdFlags)
	}
	return l
}

// Printf logs format/args if the Logger is enabled; otherwise it is a
// no-op, so callers can log unconditionally on the hot path.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	l.std.Printf(format, args...)
}

// Func returns a func(string, ...any) bound to Printf, for handing to
// collaborators (metadb.Options.Logf, filestore.Options.Logf) that accept
// a plain function rather than a *Logger, so they stay decoupled from
// this package.
func (l *Logger) Func() func(string, ...any) {
	return l.Printf
}
