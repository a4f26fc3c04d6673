// Package storage holds per-identity limiter state in memory.
//
// # Overview
//
// Limiters that keep state per identity (sliding window log, token bucket)
// store it in a MemoryStore. The store is split into shards, each guarded by
// its own mutex and bounded by its own LRU list, so that unrelated identities
// never contend on the same lock and the total number of tracked identities
// stays under a configured ceiling.
//
// # Usage
//
//	store, err := storage.NewMemoryStore[bucketState](storage.Config{
//	    MaxEntries: 100000,
//	    Shards:     32,
//	    Now:        clock.Now,
//	})
//
//	store.Update("user-123", func(now time.Time, st *bucketState, created bool) {
//	    // mutate st; the shard lock is held
//	})
//
//	// Drop identities idle since before cutoff
//	removed := store.Sweep(cutoff)
//
// # Eviction
//
// Two things remove an identity: the LRU ceiling (EvictCapacity) when a new
// identity arrives in a full shard, and Sweep (EvictIdle). Callers that only
// sweep identities whose state is equivalent to fresh state get eviction that
// never changes a decision. Capacity evictions reset a quota and are reported
// through Config.OnEvict.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The update function runs with the
// shard lock held and must not call back into the store.
package storage
