package middleware

import (
	"context"
	"net/http"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// routeKey stores the *routeInfo filled in by Routed.
	routeKey contextKey = "route"
)

// routeInfo is shared between outer middleware and the matched handler,
// since http.ServeMux sets the pattern on its own copy of the request.
type routeInfo struct {
	pattern string
}

// withRouteInfo returns ctx carrying a routeInfo, reusing one already present.
func withRouteInfo(ctx context.Context) (context.Context, *routeInfo) {
	if info, ok := ctx.Value(routeKey).(*routeInfo); ok {
		return ctx, info
	}
	info := &routeInfo{}
	return context.WithValue(ctx, routeKey, info), info
}

// Routed records the ServeMux pattern that matched the request so that
// the logging, tracing and metrics middleware can label by route.
// Wrap each handler registered on the mux with it.
func Routed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(routeKey).(*routeInfo); ok {
			info.pattern = r.Pattern
		}
		next.ServeHTTP(w, r)
	})
}

// GetRoute returns the matched route pattern, or "" before matching.
func GetRoute(ctx context.Context) string {
	if info, ok := ctx.Value(routeKey).(*routeInfo); ok {
		return info.pattern
	}
	return ""
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
