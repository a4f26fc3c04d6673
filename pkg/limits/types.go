package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/turnstile/pkg/limits/ratelimit"
)

var (
	// ErrUnknownLimiter is returned when Check names a limiter that is not configured.
	ErrUnknownLimiter = errors.New("unknown limiter")

	// ErrNoLimiters is returned when a manager is built without any limiter.
	ErrNoLimiters = errors.New("no limiters configured")
)

// LimitError wraps an error with the limiter it concerns.
type LimitError struct {
	// Limiter is the limiter name.
	Limiter string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("limiter %q: %v", e.Limiter, e.Err)
}

// Unwrap returns the underlying error.
func (e *LimitError) Unwrap() error {
	return e.Err
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Limiter is the name of the limiter that decided.
	Limiter string

	// Strategy is the limiter's algorithm.
	Strategy ratelimit.Strategy

	// Identity is the identity the request was checked against.
	Identity string

	// Allowed is true when the request was admitted.
	Allowed bool

	// Timestamp is when the decision was made.
	Timestamp time.Time

	// Duration is how long the limiter took to decide.
	Duration time.Duration

	// RequestID is the request ID carried by the context, if any.
	RequestID string
}

// Result returns "allowed" or "rejected".
func (d *Decision) Result() string {
	if d.Allowed {
		return ResultAllowed
	}
	return ResultRejected
}

const (
	// ResultAllowed labels admitted decisions.
	ResultAllowed = "allowed"

	// ResultRejected labels rejected decisions.
	ResultRejected = "rejected"
)

// DecisionRecorder receives every decision the manager makes.
// RecordDecision must not block; Check calls it inline.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, d *Decision)
}

// LimiterInfo describes a configured limiter.
type LimiterInfo struct {
	// Name is the limiter name.
	Name string `json:"name"`

	// Strategy is the limiter's algorithm.
	Strategy ratelimit.Strategy `json:"strategy"`

	// Config holds the validated parameters.
	Config ratelimit.Config `json:"-"`

	// Identities is the number of identities currently tracked.
	// It is zero for the leaky bucket.
	Identities int `json:"identities"`
}
