package handlers

import (
	"context"

	"mercator-hq/turnstile/pkg/limits"
)

// Limiters is the view of the admission manager the API handlers need.
// *limits.Manager satisfies it.
type Limiters interface {
	Check(ctx context.Context, name, identity string) (*limits.Decision, error)
	Info() []limits.LimiterInfo
}
