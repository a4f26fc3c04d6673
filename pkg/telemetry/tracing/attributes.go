package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on turnstile spans. Standard HTTP attributes follow the
// OpenTelemetry semantic conventions; everything else lives under "turnstile.".
const (
	AttrLimiter   = attribute.Key("turnstile.limiter")
	AttrStrategy  = attribute.Key("turnstile.strategy")
	AttrAllowed   = attribute.Key("turnstile.allowed")
	AttrRequestID = attribute.Key("turnstile.request_id")

	// AttrIdentityHash carries an identity fingerprint. Raw identities are
	// never put on spans.
	AttrIdentityHash = attribute.Key("turnstile.identity_hash")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPRoute      = attribute.Key("http.route")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
)

// SetDecisionAttributes records the outcome of an admission check on span.
func SetDecisionAttributes(span trace.Span, limiter, strategy string, allowed bool) {
	span.SetAttributes(
		AttrLimiter.String(limiter),
		AttrStrategy.String(strategy),
		AttrAllowed.Bool(allowed),
	)
}

// SetHTTPAttributes sets request attributes on an HTTP server span.
func SetHTTPAttributes(span trace.Span, method, route string, status int) {
	attrs := []attribute.KeyValue{
		AttrHTTPMethod.String(method),
		AttrHTTPStatusCode.Int(status),
	}
	if route != "" {
		attrs = append(attrs, AttrHTTPRoute.String(route))
	}
	span.SetAttributes(attrs...)
}

// SetRequestID tags span with the request ID, if any.
func SetRequestID(span trace.Span, requestID string) {
	if requestID == "" {
		return
	}
	span.SetAttributes(AttrRequestID.String(requestID))
}
