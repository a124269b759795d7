// Package noop provides a Logger implementation that discards everything,
// used as the Server's default before a caller supplies a real one.
package noop

import "github.com/gera2ld/goftpd/log"

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (l noopLogger) With(...interface{}) log.Logger { return l }

// NewNoOpLogger returns a Logger that discards all events.
func NewNoOpLogger() log.Logger {
	return noopLogger{}
}
