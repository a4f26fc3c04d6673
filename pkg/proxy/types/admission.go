package types

import "time"

// AdmitResponse is the body of an admission API response, both when the
// request is admitted (200) and when it is rejected (429).
type AdmitResponse struct {
	// Allowed is true when the request was admitted.
	Allowed bool `json:"allowed"`

	// Limiter is the limiter that decided.
	Limiter string `json:"limiter"`

	// Strategy is the limiter's algorithm.
	Strategy string `json:"strategy"`

	// RequestID correlates the decision with logs and the journal.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`
}

// LimiterSummary describes one configured limiter.
type LimiterSummary struct {
	Name       string `json:"name"`
	Strategy   string `json:"strategy"`
	Identities int    `json:"identities"`
}

// LimitersResponse is the body of GET /v1/limiters.
type LimitersResponse struct {
	Limiters []LimiterSummary `json:"limiters"`
}
