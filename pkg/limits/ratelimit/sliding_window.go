package ratelimit

import (
	"sort"
	"time"

	"mercator-hq/turnstile/pkg/limits/storage"
)

// SlidingWindowLog admits at most requestsAllowed requests per identity
// within any window-long interval ending now.
//
// Each identity keeps the timestamps of its admitted requests, oldest first.
// Rejected requests are not recorded.
//
// # Algorithm
//
//  1. Drop every timestamp t with t <= now - window (a timestamp exactly
//     window old has expired)
//  2. If fewer than requestsAllowed timestamps remain, append now and admit
//  3. Otherwise reject
//
// # Memory
//
// After step 1 an identity holds at most requestsAllowed timestamps, so the
// state per identity is O(requestsAllowed).
//
// # Thread Safety
//
// SlidingWindowLog is safe for concurrent use. Identities are spread across
// shards and only the shard lock of the calling identity is taken.
type SlidingWindowLog struct {
	window          time.Duration
	requestsAllowed int
	clock           Clock
	states          *storage.MemoryStore[windowLog]
}

// windowLog is the per-identity admitted-request log.
type windowLog struct {
	timestamps []time.Time
}

// NewSlidingWindowLog creates a sliding window log limiter.
//
// Example:
//
//	// 100 requests per rolling minute per identity
//	sw, err := NewSlidingWindowLog(time.Minute, 100)
func NewSlidingWindowLog(window time.Duration, requestsAllowed int, opts ...Option) (*SlidingWindowLog, error) {
	cfg := Config{Strategy: StrategySlidingWindowLog, Window: window, RequestsAllowed: requestsAllowed}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	states, err := newStore[windowLog](o)
	if err != nil {
		return nil, err
	}

	return &SlidingWindowLog{
		window:          window,
		requestsAllowed: requestsAllowed,
		clock:           o.clock,
		states:          states,
	}, nil
}

// Allow reports whether a request from identity is admitted now.
func (sw *SlidingWindowLog) Allow(identity string) bool {
	allowed := false
	sw.states.Update(identity, func(now time.Time, log *windowLog, _ bool) {
		log.pruneLocked(now.Add(-sw.window))

		if len(log.timestamps) >= sw.requestsAllowed {
			return
		}

		// Keep the log ordered even if the clock stepped backwards.
		if n := len(log.timestamps); n > 0 && now.Before(log.timestamps[n-1]) {
			now = log.timestamps[n-1]
		}
		log.timestamps = append(log.timestamps, now)
		allowed = true
	})
	return allowed
}

// pruneLocked drops timestamps at or before cutoff.
// Caller must hold the shard lock.
func (l *windowLog) pruneLocked(cutoff time.Time) {
	i := sort.Search(len(l.timestamps), func(i int) bool {
		return l.timestamps[i].After(cutoff)
	})
	if i == 0 {
		return
	}
	n := copy(l.timestamps, l.timestamps[i:])
	l.timestamps = l.timestamps[:n]
}

// Count returns how many requests from identity are inside the window now.
func (sw *SlidingWindowLog) Count(identity string) int {
	count := 0
	sw.states.Inspect(identity, func(now time.Time, entry *storage.Entry[windowLog]) {
		cutoff := now.Add(-sw.window)
		for _, ts := range entry.State.timestamps {
			if ts.After(cutoff) {
				count++
			}
		}
	})
	return count
}

// Window returns the configured window length.
func (sw *SlidingWindowLog) Window() time.Duration {
	return sw.window
}

// RequestsAllowed returns the configured admissions per window.
func (sw *SlidingWindowLog) RequestsAllowed() int {
	return sw.requestsAllowed
}

// Identities returns the number of tracked identities.
func (sw *SlidingWindowLog) Identities() int {
	return sw.states.Len()
}

// Sweep removes identities with no request in the last window. Their logs
// would be empty after the next prune, so the removal is invisible.
func (sw *SlidingWindowLog) Sweep() int {
	return sw.states.Sweep(sw.clock.Now().Add(-sw.window))
}
