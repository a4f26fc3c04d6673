// Package ratelimit provides the admission algorithms behind every limiter.
//
// # Overview
//
// Three strategies share the Limiter interface:
//
//   - Sliding Window Log: per identity, keeps the timestamp of every admitted
//     request inside the window and admits while fewer than the allowed
//     number are present
//   - Token Bucket: per identity, a fractional token count that refills at a
//     constant rate up to a limit
//   - Leaky Bucket: one global queue that drains at a constant rate; the
//     identity argument is ignored
//
// # Usage
//
//	limiter, err := ratelimit.New(ratelimit.Config{
//	    Strategy:        ratelimit.StrategySlidingWindowLog,
//	    Window:          time.Minute,
//	    RequestsAllowed: 100,
//	})
//	if err != nil {
//	    // errors.Is(err, ratelimit.ErrInvalidConfiguration)
//	}
//
//	if limiter.Allow("user-123") {
//	    // admitted
//	}
//
// # Time
//
// Every limiter reads time through a Clock. SystemClock is the default;
// ManualClock makes tests and simulations deterministic:
//
//	clock := ratelimit.NewManualClock(time.Unix(0, 0))
//	limiter, _ := ratelimit.NewTokenBucket(time.Second, 1, 5, ratelimit.WithClock(clock))
//	clock.Advance(time.Second)
//
// # Memory
//
// Per-identity state lives in a sharded LRU store (see package storage). It
// is bounded by WithMaxIdentities and trimmed by Sweep, which only removes
// identities whose state has fully reset.
//
// # Thread Safety
//
// All limiters are safe for concurrent use. Allow never blocks on I/O and
// never returns an error.
package ratelimit
