// Package logging provides the engine's structured logging surface:
// a small leveled Logger interface, a zerolog-backed implementation,
// and an adapter wrapper that logs every resolution call.
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger takes in a message and key/value tag pairs.
type Logger interface {
	Debug(msg string, tags ...interface{})
	Info(msg string, tags ...interface{})
	Warn(msg string, tags ...interface{})
	Error(msg string, tags ...interface{})
}

// New creates a zerolog-backed logger writing to w.
func New(w io.Writer) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// NewWithZerolog wraps an existing zerolog logger.
func NewWithZerolog(zl zerolog.Logger) Logger {
	return &zeroLogger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

type zeroLogger struct {
	zl zerolog.Logger
}

func (l *zeroLogger) log(ev *zerolog.Event, msg string, tags []interface{}) {
	for i := 0; i+1 < len(tags); i += 2 {
		key, ok := tags[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, tags[i+1])
	}
	ev.Msg(msg)
}

// Debug creates a debug log entry.
func (l *zeroLogger) Debug(msg string, tags ...interface{}) { l.log(l.zl.Debug(), msg, tags) }

// Info creates an info log entry.
func (l *zeroLogger) Info(msg string, tags ...interface{}) { l.log(l.zl.Info(), msg, tags) }

// Warn creates a warn log entry.
func (l *zeroLogger) Warn(msg string, tags ...interface{}) { l.log(l.zl.Warn(), msg, tags) }

// Error creates an error log entry.
func (l *zeroLogger) Error(msg string, tags ...interface{}) { l.log(l.zl.Error(), msg, tags) }
