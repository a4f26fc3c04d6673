package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// LimiterKey is the context key for the limiter handling a request.
	LimiterKey contextKey = "limiter"

	// IdentityKey is the context key for the resolved identity.
	IdentityKey contextKey = "identity"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLimiter adds a limiter name to the context.
func WithLimiter(ctx context.Context, limiter string) context.Context {
	return context.WithValue(ctx, LimiterKey, limiter)
}

// GetLimiter retrieves the limiter name from the context.
func GetLimiter(ctx context.Context) string {
	if limiter, ok := ctx.Value(LimiterKey).(string); ok {
		return limiter
	}
	return ""
}

// WithIdentity adds the resolved identity to the context.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentity retrieves the identity from the context.
func GetIdentity(ctx context.Context) string {
	if identity, ok := ctx.Value(IdentityKey).(string); ok {
		return identity
	}
	return ""
}

// contextAttrs extracts common fields from ctx. The identity is not
// included; callers log it explicitly so the redactor sees it.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID := GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if limiter := GetLimiter(ctx); limiter != "" {
		attrs = append(attrs, slog.String("limiter", limiter))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return attrs
}
