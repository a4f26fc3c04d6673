package storage

import "time"

// EvictReason describes why an identity left the store.
type EvictReason string

const (
	// EvictCapacity means the shard was full and the least recently used
	// identity made room for a new one.
	EvictCapacity EvictReason = "capacity"

	// EvictIdle means a sweep found the identity idle past the cutoff.
	EvictIdle EvictReason = "idle"
)

const (
	// DefaultMaxEntries is the identity ceiling used when Config.MaxEntries is zero.
	DefaultMaxEntries = 100000

	// DefaultShards is the shard count used when Config.Shards is zero.
	DefaultShards = 32
)

// Config configures a MemoryStore.
type Config struct {
	// MaxEntries is the maximum number of identities across all shards.
	// Each shard holds at most ceil(MaxEntries/Shards).
	// Default: 100,000
	MaxEntries int

	// Shards is the number of independently locked partitions.
	// Default: 32
	Shards int

	// Now returns the current time. It is called with the shard lock held
	// so that timestamps handed to the update function are ordered per identity.
	// Default: time.Now
	Now func() time.Time

	// OnEvict is called after identities are removed, with the number removed.
	// It runs outside any shard lock.
	OnEvict func(reason EvictReason, n int)
}

// Entry is the stored value for one identity.
type Entry[S any] struct {
	// State is the limiter-specific state.
	State S

	// LastSeen is the time of the most recent Update for this identity.
	LastSeen time.Time
}
