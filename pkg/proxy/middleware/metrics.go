package middleware

import (
	"net/http"
	"time"

	"mercator-hq/turnstile/pkg/telemetry/metrics"
)

// MetricsMiddleware records request count, latency and in-flight requests
// labelled by route, method and status. Routes beyond the collector's
// cardinality limit are recorded as "other". It is a pass-through when
// metrics are disabled.
//
// Example usage:
//
//	handler = MetricsMiddleware(collector)(handler)
func MetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		requests := collector.Requests()
		if requests == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, route := withRouteInfo(r.Context())
			rw := newResponseWriter(w)

			requests.Begin()
			next.ServeHTTP(rw, r.WithContext(ctx))

			requests.RecordRequest(collector.Route(route.pattern), r.Method, rw.statusCode, time.Since(start))
		})
	}
}
