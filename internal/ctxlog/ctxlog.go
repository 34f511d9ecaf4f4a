// Package ctxlog threads a *slog.Logger through context.Context so the
// scheduler's worker goroutines and the machine runner can log without a
// logger field on every type that touches a context.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If none was
// attached with WithLogger, it falls back to slog.Default() rather than
// panicking — worker goroutines outlive any single request-scoped context
// and must never crash the pool over a missing logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
