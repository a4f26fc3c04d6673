package ratelimit

import (
	"math"
	"time"

	"mercator-hq/turnstile/pkg/limits/storage"
)

// TokenBucket gives every identity a bucket holding up to limit tokens that
// refills tokensPerInterval tokens every refillInterval. Each admitted
// request spends one token.
//
// Token counts are fractional, so a refill rate below one token per
// interval accrues correctly across calls.
//
// # Algorithm
//
// First request from an identity: the bucket starts full, one token is
// spent and the request is admitted.
//
// Later requests:
//
//  1. e = (now - lastRefill) / refillInterval
//  2. tokens = min(limit, tokens + e*tokensPerInterval); lastRefill = now
//  3. If tokens < 1: reject (the refilled state is kept)
//  4. Otherwise spend one token and admit
//
// # Thread Safety
//
// TokenBucket is safe for concurrent use. Identities are spread across
// shards and only the shard lock of the calling identity is taken.
type TokenBucket struct {
	refillInterval    time.Duration
	tokensPerInterval float64
	limit             float64
	clock             Clock
	states            *storage.MemoryStore[bucket]
	resetHorizon      time.Duration
}

// bucket is the per-identity token state.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a token bucket limiter.
//
// Example:
//
//	// 10 requests per second average, bursts up to 50
//	tb, err := NewTokenBucket(time.Second, 10, 50)
//
//	// one request every two seconds, no bursts
//	tb, err := NewTokenBucket(time.Second, 0.5, 1)
func NewTokenBucket(refillInterval time.Duration, tokensPerInterval float64, limit int, opts ...Option) (*TokenBucket, error) {
	cfg := Config{
		Strategy:          StrategyTokenBucket,
		RefillInterval:    refillInterval,
		TokensPerInterval: tokensPerInterval,
		Limit:             limit,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	states, err := newStore[bucket](o)
	if err != nil {
		return nil, err
	}

	return &TokenBucket{
		refillInterval:    refillInterval,
		tokensPerInterval: tokensPerInterval,
		limit:             float64(limit),
		clock:             o.clock,
		states:            states,
		resetHorizon:      cfg.ResetHorizon(),
	}, nil
}

// Allow reports whether a request from identity is admitted now.
func (tb *TokenBucket) Allow(identity string) bool {
	allowed := false
	tb.states.Update(identity, func(now time.Time, b *bucket, created bool) {
		if created {
			b.tokens = tb.limit - 1
			b.lastRefill = now
			allowed = true
			return
		}

		tb.refillLocked(b, now)
		if b.tokens < 1 {
			return
		}
		b.tokens--
		allowed = true
	})
	return allowed
}

// refillLocked adds the tokens accrued since lastRefill, capped at limit.
// Caller must hold the shard lock.
func (tb *TokenBucket) refillLocked(b *bucket, now time.Time) {
	intervals := float64(elapsedSince(now, b.lastRefill)) / float64(tb.refillInterval)
	b.tokens = math.Min(tb.limit, b.tokens+intervals*tb.tokensPerInterval)
	b.lastRefill = now
}

// Tokens returns the tokens identity would have if it called now, without
// spending any. An unseen identity has a full bucket.
func (tb *TokenBucket) Tokens(identity string) float64 {
	tokens := tb.limit
	tb.states.Inspect(identity, func(now time.Time, entry *storage.Entry[bucket]) {
		b := entry.State
		tb.refillLocked(&b, now)
		tokens = b.tokens
	})
	return tokens
}

// Limit returns the bucket capacity.
func (tb *TokenBucket) Limit() int {
	return int(tb.limit)
}

// Identities returns the number of tracked identities.
func (tb *TokenBucket) Identities() int {
	return tb.states.Len()
}

// Sweep removes identities whose bucket has refilled to the limit. A full
// bucket admits exactly like a fresh one, so the removal is invisible.
func (tb *TokenBucket) Sweep() int {
	return tb.states.Sweep(tb.clock.Now().Add(-tb.resetHorizon))
}
