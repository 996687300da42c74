// Package logging provides a small sublogger tree in the style of the
// teacher's pkg/logging: a *Logger is nil-safe (logging through a nil logger
// is a silent no-op), and Sublogger builds a dotted-name hierarchy. Unlike
// the teacher, output is routed through a pluggable Backend so the server
// binary can log to syslog while the client logs colored text to stderr.
package logging

import (
	"fmt"

	"github.com/fatih/color"
)

// Backend is the sink a Logger ultimately writes lines to.
type Backend interface {
	// Info logs an informational line.
	Info(line string)
	// Warn logs a warning line.
	Warn(line string)
	// Err logs an error line.
	Err(line string)
}

// Logger is a named, hierarchical logger. A nil *Logger is valid and drops
// everything written to it, mirroring the teacher's Logger.
type Logger struct {
	backend Backend
	prefix  string
}

// New creates a root logger backed by the given Backend.
func New(backend Backend) *Logger {
	return &Logger{backend: backend}
}

// Sublogger creates a new sublogger with the specified name appended to the
// dotted prefix chain. If the receiver is nil, the sublogger is nil too.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{backend: l.backend, prefix: prefix}
}

func (l *Logger) format(line string) string {
	if l.prefix == "" {
		return line
	}
	return fmt.Sprintf("[%s] %s", l.prefix, line)
}

// Info logs an informational message with fmt.Sprint semantics.
func (l *Logger) Info(v ...interface{}) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Info(l.format(fmt.Sprint(v...)))
}

// Infof logs an informational message with fmt.Sprintf semantics.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Info(l.format(fmt.Sprintf(format, v...)))
}

// Warn logs a warning for an error, colored yellow on terminal-backed
// backends, matching the teacher's Logger.Warn.
func (l *Logger) Warn(err error) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Warn(l.format(color.YellowString("Warning: %v", err)))
}

// Error logs an error, colored red on terminal-backed backends, matching the
// teacher's Logger.Error.
func (l *Logger) Error(err error) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Err(l.format(color.RedString("Error: %v", err)))
}
