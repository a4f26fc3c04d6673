package proxy

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Header names read when deriving identities.
const (
	// AuthorizationHeader carries "Bearer <api-key>".
	AuthorizationHeader = "Authorization"

	// APIKeyHeader carries a bare API key.
	APIKeyHeader = "X-API-Key"

	// UserIDHeader is the default identity header.
	UserIDHeader = "X-User-ID"

	// RequestIDHeader carries the request ID.
	RequestIDHeader = "X-Request-ID"
)

// IdentitySource selects how a request's identity is derived.
type IdentitySource string

const (
	// IdentityFromHeader reads a configured header.
	IdentityFromHeader IdentitySource = "header"

	// IdentityFromAPIKey reads the bearer token or X-API-Key.
	IdentityFromAPIKey IdentitySource = "api_key"

	// IdentityFromRemoteAddr uses the client IP without its port.
	IdentityFromRemoteAddr IdentitySource = "remote_addr"
)

// IdentityExtractor derives identities from requests.
type IdentityExtractor struct {
	// Source selects the derivation. Default: IdentityFromHeader.
	Source IdentitySource

	// Header is read when Source is IdentityFromHeader. Default: UserIDHeader.
	Header string
}

// NewIdentityExtractor validates source and returns an extractor.
func NewIdentityExtractor(source, header string) (*IdentityExtractor, error) {
	e := &IdentityExtractor{Source: IdentitySource(source), Header: header}
	if e.Source == "" {
		e.Source = IdentityFromHeader
	}
	if e.Header == "" {
		e.Header = UserIDHeader
	}
	switch e.Source {
	case IdentityFromHeader, IdentityFromAPIKey, IdentityFromRemoteAddr:
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentitySource, source)
	}
}

// Extract returns the request's identity, or ErrMissingIdentity.
func (e *IdentityExtractor) Extract(r *http.Request) (string, error) {
	var id string
	switch e.Source {
	case IdentityFromAPIKey:
		id = ExtractAPIKey(r)
	case IdentityFromRemoteAddr:
		id = ExtractRemoteIP(r)
	default:
		id = strings.TrimSpace(r.Header.Get(e.Header))
	}
	if id == "" {
		return "", ErrMissingIdentity
	}
	return id, nil
}

// Param names the request field the identity was expected in, for error
// responses.
func (e *IdentityExtractor) Param() string {
	switch e.Source {
	case IdentityFromAPIKey:
		return AuthorizationHeader
	case IdentityFromRemoteAddr:
		return "remote_addr"
	default:
		return e.Header
	}
}

// ExtractAPIKey returns the API key from "Authorization: Bearer <key>",
// falling back to the X-API-Key header. It returns "" when neither is set
// or the Authorization header is malformed.
func ExtractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get(AuthorizationHeader); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// ExtractRemoteIP returns the host part of r.RemoteAddr.
func ExtractRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
