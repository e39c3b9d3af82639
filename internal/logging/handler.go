// Package logging provides a slog handler that tags warnings and errors with the
// request they happened in.
package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	requestPathKey contextKey = iota
	userIDKey
)

// WithRequestPath stores the request path in ctx for the handler to pick up.
func WithRequestPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, requestPathKey, path)
}

// WithUserID stores the signed-in user id in ctx for the handler to pick up.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// RequestPathHandler is a slog.Handler that wraps another handler and adds the
// request path and user id found in the context to WARN and ERROR records.
type RequestPathHandler struct {
	inner slog.Handler
	level slog.Level // minimum level that gets request attributes
}

// NewRequestPathHandler creates a RequestPathHandler with a WARN threshold.
func NewRequestPathHandler(inner slog.Handler) *RequestPathHandler {
	return &RequestPathHandler{inner: inner, level: slog.LevelWarn}
}

// NewRequestPathHandlerWithLevel creates a RequestPathHandler with a custom threshold.
func NewRequestPathHandlerWithLevel(inner slog.Handler, level slog.Level) *RequestPathHandler {
	return &RequestPathHandler{inner: inner, level: level}
}

// Enabled implements slog.Handler.
func (h *RequestPathHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RequestPathHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level && ctx != nil {
		r = r.Clone()
		if path, ok := ctx.Value(requestPathKey).(string); ok && path != "" {
			r.AddAttrs(slog.String("path", path))
		}
		if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("user_id", id))
		}
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *RequestPathHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RequestPathHandler{inner: h.inner.WithAttrs(attrs), level: h.level}
}

// WithGroup implements slog.Handler.
func (h *RequestPathHandler) WithGroup(name string) slog.Handler {
	return &RequestPathHandler{inner: h.inner.WithGroup(name), level: h.level}
}
