package journal

import (
	"context"
	"time"
)

// Record is one journaled admission decision.
type Record struct {
	// ID is a random UUID assigned when the decision is recorded.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// RequestID is the request ID carried by the request context, if any.
	RequestID string `json:"request_id,omitempty"`

	// Limiter is the name of the limiter that decided.
	Limiter string `json:"limiter"`

	// Strategy is the limiter's algorithm.
	Strategy string `json:"strategy"`

	// Identity is the checked identity, or its fingerprint when the
	// recorder hashes identities.
	Identity string `json:"identity"`

	// Allowed is true when the request was admitted.
	Allowed bool `json:"allowed"`
}

// Order is the sort direction of query results by timestamp.
type Order string

const (
	// OrderDesc returns the newest records first. It is the default.
	OrderDesc Order = "desc"

	// OrderAsc returns the oldest records first.
	OrderAsc Order = "asc"
)

// Query selects journal records. Zero-valued fields do not filter.
type Query struct {
	// Since includes records at or after this time.
	Since *time.Time

	// Until includes records strictly before this time.
	Until *time.Time

	// Limiter filters by limiter name.
	Limiter string

	// Identity filters by stored identity.
	Identity string

	// Allowed filters by outcome when non-nil.
	Allowed *bool

	// Limit caps the number of records returned. Zero means DefaultLimit.
	Limit int

	// Offset skips this many matching records.
	Offset int

	// Order sorts by timestamp. Default: OrderDesc.
	Order Order
}

// DefaultLimit is the number of records a query returns when Limit is zero.
const DefaultLimit = 100

// EffectiveLimit returns the limit a backend should apply.
func (q *Query) EffectiveLimit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultLimit
}

// Matches reports whether r satisfies the query's filters.
// Pagination and ordering are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.Since != nil && r.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !r.Timestamp.Before(*q.Until) {
		return false
	}
	if q.Limiter != "" && r.Limiter != q.Limiter {
		return false
	}
	if q.Identity != "" && r.Identity != q.Identity {
		return false
	}
	if q.Allowed != nil && r.Allowed != *q.Allowed {
		return false
	}
	return true
}

// Storage persists journal records.
type Storage interface {
	// Store persists a single record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching the query.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query's filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records older than cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
