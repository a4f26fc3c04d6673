package ratelimit

import (
	"math"
	"sync"
	"time"
)

// LeakyBucket shapes all traffic through one bounded queue that drains at
// leakRate requests per second. It keeps no per-identity state: Allow
// ignores its argument and every caller shares the same queue.
//
// # Algorithm
//
//  1. leaked = floor((now - lastLeak) * leakRate)
//  2. If leaked > 0: drop min(leaked, len(queue)) oldest entries and set
//     lastLeak = now (the fractional remainder is discarded)
//  3. If len(queue) >= capacity: reject
//  4. Otherwise enqueue now and admit
//
// lastLeak starts at construction time.
//
// # Thread Safety
//
// LeakyBucket is safe for concurrent use; a single mutex guards the queue.
//
// The queue is allocated on demand and doubles as it fills, up to capacity.
type LeakyBucket struct {
	capacity int
	leakRate float64
	clock    Clock

	mu       sync.Mutex
	queue    []time.Time // ring buffer of enqueue times, len(queue) <= capacity
	head     int         // index of the oldest entry
	size     int         // number of queued entries
	lastLeak time.Time
}

// NewLeakyBucket creates a leaky bucket limiter.
//
// Example:
//
//	// queue up to 20 requests, drain 5 per second
//	lb, err := NewLeakyBucket(20, 5)
func NewLeakyBucket(capacity int, leakRate float64, opts ...Option) (*LeakyBucket, error) {
	cfg := Config{Strategy: StrategyLeakyBucket, Capacity: capacity, LeakRate: leakRate}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)

	return &LeakyBucket{
		capacity: capacity,
		leakRate: leakRate,
		clock:    o.clock,
		lastLeak: o.clock.Now(),
	}, nil
}

// Allow admits or rejects a request. The identity is ignored.
func (lb *LeakyBucket) Allow(_ string) bool {
	return lb.Take()
}

// Take admits or rejects a request against the shared queue.
func (lb *LeakyBucket) Take() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := lb.clock.Now()
	lb.leakLocked(now)

	if lb.size >= lb.capacity {
		return false
	}

	if lb.size == len(lb.queue) {
		lb.growLocked()
	}
	lb.queue[(lb.head+lb.size)%len(lb.queue)] = now
	lb.size++
	return true
}

// initialQueueSize is the first allocation of the ring buffer.
const initialQueueSize = 16

// growLocked doubles the ring buffer, capped at capacity, and moves the
// queued entries to its front.
// Caller must hold lock.
func (lb *LeakyBucket) growLocked() {
	n := len(lb.queue) * 2
	if n < initialQueueSize {
		n = initialQueueSize
	}
	if n > lb.capacity || n <= 0 {
		n = lb.capacity
	}

	queue := make([]time.Time, n)
	for i := 0; i < lb.size; i++ {
		queue[i] = lb.queue[(lb.head+i)%len(lb.queue)]
	}
	lb.queue = queue
	lb.head = 0
}

// leakLocked drains the entries accrued since lastLeak.
// Caller must hold lock.
func (lb *LeakyBucket) leakLocked(now time.Time) {
	leaked := math.Floor(elapsedSince(now, lb.lastLeak).Seconds() * lb.leakRate)
	if leaked <= 0 {
		return
	}

	drop := lb.size
	if leaked < float64(lb.size) {
		drop = int(leaked)
	}
	for i := 0; i < drop; i++ {
		lb.queue[lb.head] = time.Time{}
		lb.head = (lb.head + 1) % len(lb.queue)
	}
	lb.size -= drop
	if lb.size == 0 {
		lb.head = 0
	}
	lb.lastLeak = now
}

// Len returns the number of requests that would be queued if a request
// arrived now. It does not drain the queue.
func (lb *LeakyBucket) Len() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	leaked := math.Floor(elapsedSince(lb.clock.Now(), lb.lastLeak).Seconds() * lb.leakRate)
	if leaked >= float64(lb.size) {
		return 0
	}
	return lb.size - int(leaked)
}

// Capacity returns the maximum queue length.
func (lb *LeakyBucket) Capacity() int {
	return lb.capacity
}

// LeakRate returns the drain rate in requests per second.
func (lb *LeakyBucket) LeakRate() float64 {
	return lb.leakRate
}
