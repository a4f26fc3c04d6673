package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// MemoryStore is a sharded, LRU-bounded map from identity to limiter state.
//
// Each shard owns a simplelru.LRU guarded by a sync.Mutex. Recency order in
// a shard follows Update calls, and because Now is read under the shard lock
// it also follows LastSeen. Sweep relies on that ordering to stop at the
// first identity that is still active.
type MemoryStore[S any] struct {
	shards  []*shard[S]
	now     func() time.Time
	onEvict func(reason EvictReason, n int)
}

type shard[S any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, *Entry[S]]
}

// NewMemoryStore creates a store with the given configuration.
// Zero values in cfg are replaced by defaults.
func NewMemoryStore[S any](cfg Config) (*MemoryStore[S], error) {
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("max entries must be non-negative, got %d", cfg.MaxEntries)
	}
	if cfg.Shards < 0 {
		return nil, fmt.Errorf("shards must be non-negative, got %d", cfg.Shards)
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Shards == 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Shards > cfg.MaxEntries {
		cfg.Shards = cfg.MaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	perShard := (cfg.MaxEntries + cfg.Shards - 1) / cfg.Shards

	s := &MemoryStore[S]{
		shards:  make([]*shard[S], cfg.Shards),
		now:     cfg.Now,
		onEvict: cfg.OnEvict,
	}
	for i := range s.shards {
		lru, err := simplelru.NewLRU[string, *Entry[S]](perShard, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create shard %d: %w", i, err)
		}
		s.shards[i] = &shard[S]{lru: lru}
	}

	return s, nil
}

// Update runs fn on the state for identity with the shard lock held.
//
// A missing identity gets a zero S and created=true. The entry's LastSeen is
// set to now after fn returns.
func (s *MemoryStore[S]) Update(identity string, fn func(now time.Time, state *S, created bool)) {
	sh := s.shardFor(identity)

	evicted := false
	sh.mu.Lock()
	now := s.now()
	entry, ok := sh.lru.Get(identity)
	if !ok {
		entry = &Entry[S]{}
		evicted = sh.lru.Add(identity, entry)
	}
	fn(now, &entry.State, !ok)
	entry.LastSeen = now
	sh.mu.Unlock()

	if evicted && s.onEvict != nil {
		s.onEvict(EvictCapacity, 1)
	}
}

// Inspect runs fn on the entry for identity with the shard lock held,
// without touching recency. Returns false if identity is not tracked.
func (s *MemoryStore[S]) Inspect(identity string, fn func(now time.Time, entry *Entry[S])) bool {
	sh := s.shardFor(identity)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.lru.Peek(identity)
	if !ok {
		return false
	}
	fn(s.now(), entry)
	return true
}

// Sweep removes every identity whose LastSeen is at or before cutoff.
// Returns the number of identities removed.
func (s *MemoryStore[S]) Sweep(cutoff time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.sweep(cutoff)
	}

	if removed > 0 && s.onEvict != nil {
		s.onEvict(EvictIdle, removed)
	}
	return removed
}

func (sh *shard[S]) sweep(cutoff time.Time) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	removed := 0
	for {
		_, entry, ok := sh.lru.GetOldest()
		if !ok || entry.LastSeen.After(cutoff) {
			return removed
		}
		sh.lru.RemoveOldest()
		removed++
	}
}

// Len returns the number of identities currently tracked.
func (s *MemoryStore[S]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += sh.lru.Len()
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore[S]) shardFor(identity string) *shard[S] {
	return s.shards[fnv32a(identity)%uint32(len(s.shards))]
}

// fnv32a hashes key with 32-bit FNV-1a without allocating.
func fnv32a(key string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	hash := uint32(offset32)
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
