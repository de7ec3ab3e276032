// Package logging provides implementations of the ports.Logger interface:
// a ConsoleLogger for text or JSON output and a NopLogger for silence.
package logging

import (
	"context"
	"io"

	"github.com/felixgeelhaar/provisioner/internal/ports"
)

// Options selects a logger from user settings.
type Options struct {
	Level  string
	JSON   bool
	Color  bool
	Output io.Writer
}

// New builds a ConsoleLogger from options. An unknown level falls back to
// info and is returned as an error alongside the usable logger.
func New(opts Options) (*ConsoleLogger, error) {
	level, err := ports.ParseLevel(opts.Level)

	consoleOpts := []ConsoleLoggerOption{
		WithLevel(level),
		WithJSONFormat(opts.JSON),
		WithColor(opts.Color && !opts.JSON),
		WithTimestamp(opts.JSON),
	}
	if opts.Output != nil {
		consoleOpts = append(consoleOpts, WithOutput(opts.Output))
	}

	return NewConsoleLogger(consoleOpts...), err
}

// NopLogger discards all messages.
type NopLogger struct {
	level ports.Level
}

// NewNopLogger creates a new no-op logger.
func NewNopLogger() *NopLogger {
	return &NopLogger{level: ports.LevelInfo}
}

// Debug does nothing.
func (l *NopLogger) Debug(_ context.Context, _ string, _ ...ports.Field) {}

// Info does nothing.
func (l *NopLogger) Info(_ context.Context, _ string, _ ...ports.Field) {}

// Warn does nothing.
func (l *NopLogger) Warn(_ context.Context, _ string, _ ...ports.Field) {}

// Error does nothing.
func (l *NopLogger) Error(_ context.Context, _ string, _ ...ports.Field) {}

// With returns the receiver.
func (l *NopLogger) With(_ ...ports.Field) ports.Logger {
	return l
}

// Level returns the log level.
func (l *NopLogger) Level() ports.Level {
	return l.level
}

// SetLevel sets the log level.
func (l *NopLogger) SetLevel(level ports.Level) {
	l.level = level
}

var _ ports.Logger = (*NopLogger)(nil)
