// Package middleware provides the HTTP middleware of the turnstile server.
//
// # Middleware Chain
//
// The server wraps its mux in this order, outermost first:
//
//	handler = Recovery(Logging(RequestID(Tracing(Metrics(mux)))))
//
//  1. Recovery: turn panics into a JSON 500
//  2. Logging: log one line per request, level by status
//  3. RequestID: accept or generate X-Request-ID
//  4. Tracing: continue the caller's trace in a server span
//  5. Metrics: count requests by route, method and status
//
// The gateway route adds two more in front of the reverse proxy:
//
//	gateway = Timeout(Admission(proxy))
//
// AdmissionMiddleware asks a Checker for a decision and answers 429 when
// the limiter rejects. TimeoutMiddleware sets a context deadline that the
// reverse proxy maps to 504.
//
// # Routes
//
// http.ServeMux records the matched pattern only on the request it hands
// to the handler. Handlers registered with Routed copy it into a holder
// placed in the context by the outer middleware, so logs, spans and
// metrics are labelled by pattern rather than raw path:
//
//	mux.Handle("GET /v1/limiters", middleware.Routed(list))
package middleware
