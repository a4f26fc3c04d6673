package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/telemetry/tracing"
)

// TracingMiddleware continues the caller's W3C trace context and wraps the
// request in a server span. The span is renamed to "METHOD route" once
// the route is known and records the response status.
//
// Example usage:
//
//	handler = TracingMiddleware(tracer)(handler)
func TracingMiddleware(tracer limits.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, route := withRouteInfo(ctx)

			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if name := spanName(r.Method, route.pattern); name != r.Method {
				span.SetName(name)
			}
			tracing.SetHTTPAttributes(span, r.Method, route.pattern, rw.statusCode)
			if id := rw.Header().Get(proxy.RequestIDHeader); id != "" {
				tracing.SetRequestID(span, id)
			}
		})
	}
}

// spanName returns "METHOD route". Patterns registered with a method
// already carry it and are used as is.
func spanName(method, pattern string) string {
	switch {
	case pattern == "":
		return method
	case strings.HasPrefix(pattern, method+" "):
		return pattern
	default:
		return method + " " + pattern
	}
}
