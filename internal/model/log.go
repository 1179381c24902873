package model

import (
	"context"
	"log/slog"
)

// LogFunc is a callback for emitting provider-level log messages
// (model chosen, response received) without coupling to a logger.
type LogFunc func(message string)

type logFuncKey struct{}

// WithLogFunc returns a context carrying a log callback.
func WithLogFunc(ctx context.Context, fn LogFunc) context.Context {
	return context.WithValue(ctx, logFuncKey{}, fn)
}

// SlogFunc returns a LogFunc that writes debug records to logger with attrs.
func SlogFunc(logger *slog.Logger, attrs ...any) LogFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(msg string) {
		logger.Debug(msg, attrs...)
	}
}

// emitLog calls the log callback on the context, if one is set.
func emitLog(ctx context.Context, msg string) {
	if fn, ok := ctx.Value(logFuncKey{}).(LogFunc); ok {
		fn(msg)
	}
}
