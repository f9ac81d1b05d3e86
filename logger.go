package convert

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record.
//
// Enabled reports false at every level, so slog skips building records
// and attribute values are never formatted. WithAttrs and WithGroup
// return the handler itself, which keeps derived job loggers silent too.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the package logger. It is read on every job start and
// swapped by SetLogger without locking; it is never nil.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by converters that were not given
// one with WithLogger. By default nothing is logged. Pass nil to restore
// the silent default.
//
// SetLogger is safe to call while conversions run. A job picks up the
// logger when it is created and keeps it until it ends, so a swap affects
// only jobs created afterwards.
//
// Log levels:
//   - [slog.LevelDebug]: page admission, tile rendering, flushes
//   - [slog.LevelInfo]: job start, completion and publication
//   - [slog.LevelWarn]: per-page failures, cleanup errors
//
// Example:
//
//	convert.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the package logger, never nil. It is safe for
// concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
