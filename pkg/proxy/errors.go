package proxy

import "errors"

var (
	// ErrMissingIdentity is returned when a request carries no identity.
	ErrMissingIdentity = errors.New("request has no identity")

	// ErrInvalidIdentitySource is returned for an unknown identity source.
	ErrInvalidIdentitySource = errors.New("invalid identity source")

	// ErrInvalidUpstream is returned when the gateway upstream is not an
	// absolute http(s) URL.
	ErrInvalidUpstream = errors.New("invalid upstream URL")
)
