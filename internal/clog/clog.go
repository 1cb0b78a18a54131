// Package clog provides the structured logger every canary component
// logs through. It wraps logrus the way cli/cli_app.go and the runner
// test helpers (test/helpers/logger) wrap it for the rest of the
// teacher's codebase: one *logrus.Entry, pre-populated with fields,
// handed down the call stack rather than a global.
package clog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the handle every canary component takes a reference to.
type Logger struct {
	entry *logrus.Entry
}

// New builds a root logger writing to w at the given level. Level names
// follow logrus: "debug", "info", "warn", "error".
func New(w io.Writer, level string) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	base.SetLevel(lvl)

	return &Logger{entry: logrus.NewEntry(base)}
}

// Default returns a root logger at info level writing to stderr.
func Default() *Logger {
	return New(os.Stderr, "info")
}

// Discard returns a logger that drops everything, used by components
// exercised in tests that don't assert on log output.
func Discard() *Logger {
	l := New(io.Discard, "error")
	return l
}

// With returns a child logger carrying the given structured fields in
// addition to any already attached.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithCase is a convenience wrapper for the field canary attaches to
// nearly every log line: which case (or batch) the line is about.
func (l *Logger) WithCase(id string) *Logger {
	return l.With(map[string]any{"case": id})
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...any)  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...any) { l.entry.Error(args...) }
