// Package proxy holds the HTTP plumbing shared by the admission API and
// gateway mode: identity extraction, JSON responses and the reverse proxy
// that forwards admitted traffic upstream.
//
// # Identity
//
// An IdentityExtractor derives the identity a limiter is checked against:
//
//   - header: the configured header, X-User-ID by default
//   - api_key: the bearer token in Authorization, else X-API-Key
//   - remote_addr: the client IP without its port
//
// A request without an identity yields ErrMissingIdentity; the gateway
// answers 400 rather than admitting anonymous traffic.
//
// # Gateway
//
// Gateway wraps httputil.ReverseProxy. It sets X-Forwarded-* headers,
// injects the W3C trace context into the outgoing request and turns
// upstream failures into 502 or 504 JSON errors.
//
// Subpackages: middleware (HTTP middleware chain), handlers (admission
// API) and types (JSON bodies).
package proxy
