package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext stashes the logger on the context so handlers and services
// down the call chain log with the same request attributes.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default() when
// nothing upstream attached one.
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithRequestID tags the context logger with the request id so every line
// emitted while serving a token or authorize call can be correlated.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("req_id", reqID))
}
