// Package logger provides the zerolog-backed implementation of the core
// Logger interface.
package logger

import corelogger "github.com/kilianp07/lpgsim/core/logger"

// Logger is the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every record. Tests and library callers without a
// configured logger use it.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(map[string]any) Logger  { return n }

// New returns the logger of a component: console output when APP_ENV=dev,
// JSON lines on stdout otherwise.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// ForRun returns the component logger tagged with the run and household so
// records of concurrent runs can be told apart.
func ForRun(component, runID, household string) Logger {
	return New(component).With(map[string]any{"run_id": runID, "household": household})
}
