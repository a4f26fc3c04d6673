package server

import (
	"context"
	"sync/atomic"

	"mercator-hq/turnstile/pkg/limits"
)

// limiterSet is the current limits manager. Reloads replace it whole, so
// in-flight checks finish against the manager they started with.
type limiterSet struct {
	current atomic.Pointer[limits.Manager]
}

func newLimiterSet(m *limits.Manager) *limiterSet {
	ls := &limiterSet{}
	ls.current.Store(m)
	return ls
}

func (ls *limiterSet) manager() *limits.Manager {
	return ls.current.Load()
}

// swap installs m and returns the manager it replaced.
func (ls *limiterSet) swap(m *limits.Manager) *limits.Manager {
	return ls.current.Swap(m)
}

func (ls *limiterSet) Check(ctx context.Context, name, identity string) (*limits.Decision, error) {
	return ls.manager().Check(ctx, name, identity)
}

func (ls *limiterSet) Info() []limits.LimiterInfo {
	return ls.manager().Info()
}

func (ls *limiterSet) Len() int {
	return ls.manager().Len()
}
