package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/turnstile/pkg/journal"
)

// MemoryStorage implements journal.Storage in memory. Records are lost on
// restart; it suits tests and short-lived deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*journal.Record
	closed  bool
}

var _ journal.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*journal.Record),
	}
}

// Store saves a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *journal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return journal.NewStorageError("memory", "store", journal.ErrClosed)
	}
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Query returns copies of the matching records, sorted and paginated.
func (s *MemoryStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.Record, error) {
	if query == nil {
		query = &journal.Query{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, journal.NewStorageError("memory", "query", journal.ErrClosed)
	}

	results := make([]*journal.Record, 0)
	for _, r := range s.records {
		if query.Matches(r) {
			cp := *r
			results = append(results, &cp)
		}
	}

	asc := query.Order == journal.OrderAsc
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if asc {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})

	if query.Offset >= len(results) {
		return []*journal.Record{}, nil
	}
	results = results[query.Offset:]
	if limit := query.EffectiveLimit(); limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	if query == nil {
		query = &journal.Query{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, journal.NewStorageError("memory", "count", journal.ErrClosed)
	}

	var n int64
	for _, r := range s.records {
		if query.Matches(r) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes records older than cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, journal.NewStorageError("memory", "delete", journal.ErrClosed)
	}

	var n int64
	for id, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Ping fails once the storage is closed.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return journal.NewStorageError("memory", "ping", journal.ErrClosed)
	}
	return nil
}

// Close discards every record.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}
