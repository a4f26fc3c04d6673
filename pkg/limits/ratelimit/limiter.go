package ratelimit

import (
	"fmt"
	"time"

	"mercator-hq/turnstile/pkg/limits/storage"
)

// Limiter decides whether a request from identity is admitted.
//
// Allow returns true to admit and false to reject. It never fails and never
// blocks on I/O. Strategies without per-identity state ignore identity.
type Limiter interface {
	Allow(identity string) bool
}

// IdentityTracker is implemented by limiters that keep per-identity state.
type IdentityTracker interface {
	// Identities returns the number of identities currently tracked.
	Identities() int

	// Sweep removes identities whose state has fully reset and returns how
	// many were removed. Sweeping never changes a later decision.
	Sweep() int
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	clock         Clock
	maxIdentities int
	shards        int
	onEvict       func(reason storage.EvictReason, n int)
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMaxIdentities bounds the number of tracked identities. When the bound
// is reached the least recently seen identity is dropped and starts fresh
// on its next request. Default: storage.DefaultMaxEntries.
func WithMaxIdentities(n int) Option {
	return func(o *options) {
		o.maxIdentities = n
	}
}

// WithShards sets the number of independently locked partitions.
// Default: storage.DefaultShards.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithEvictionHook registers a callback for identities leaving the state store.
func WithEvictionHook(fn func(reason storage.EvictReason, n int)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

func buildOptions(opts []Option) *options {
	o := &options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newStore[S any](o *options) (*storage.MemoryStore[S], error) {
	store, err := storage.NewMemoryStore[S](storage.Config{
		MaxEntries: o.maxIdentities,
		Shards:     o.shards,
		Now:        o.clock.Now,
		OnEvict:    o.onEvict,
	})
	if err != nil {
		return nil, &ConfigError{Field: "state", Value: err, Reason: "is unusable"}
	}
	return store, nil
}

// New builds the limiter selected by cfg.Strategy.
func New(cfg Config, opts ...Option) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategySlidingWindowLog:
		return NewSlidingWindowLog(cfg.Window, cfg.RequestsAllowed, opts...)
	case StrategyTokenBucket:
		return NewTokenBucket(cfg.RefillInterval, cfg.TokensPerInterval, cfg.Limit, opts...)
	case StrategyLeakyBucket:
		return NewLeakyBucket(cfg.Capacity, cfg.LeakRate, opts...)
	default:
		// Validate rejects unknown strategies.
		panic(fmt.Sprintf("ratelimit: unhandled strategy %q", cfg.Strategy))
	}
}

// elapsedSince returns now-then, clamped at zero.
func elapsedSince(now, then time.Time) time.Duration {
	d := now.Sub(then)
	if d < 0 {
		return 0
	}
	return d
}
