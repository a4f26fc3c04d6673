package journal

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestQuery_Matches(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	rec := &Record{
		Timestamp: base,
		Limiter:   "api",
		Identity:  "alice",
		Allowed:   false,
	}
	before := base.Add(-time.Second)
	after := base.Add(time.Second)
	yes, no := true, false

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"empty query", Query{}, true},
		{"since before", Query{Since: &before}, true},
		{"since equal", Query{Since: &base}, true},
		{"since after", Query{Since: &after}, false},
		{"until after", Query{Until: &after}, true},
		{"until equal excludes", Query{Until: &base}, false},
		{"limiter match", Query{Limiter: "api"}, true},
		{"limiter mismatch", Query{Limiter: "login"}, false},
		{"identity mismatch", Query{Identity: "bob"}, false},
		{"allowed false", Query{Allowed: &no}, true},
		{"allowed true", Query{Allowed: &yes}, false},
		{"combined", Query{Since: &before, Until: &after, Limiter: "api", Identity: "alice", Allowed: &no}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuery_EffectiveLimit(t *testing.T) {
	if got := (&Query{}).EffectiveLimit(); got != DefaultLimit {
		t.Errorf("EffectiveLimit() = %d, want %d", got, DefaultLimit)
	}
	if got := (&Query{Limit: 7}).EffectiveLimit(); got != 7 {
		t.Errorf("EffectiveLimit() = %d, want 7", got)
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("locked")
	err := fmt.Errorf("write: %w", NewStorageError("sqlite", "store", cause))

	if !errors.Is(err, ErrStorageFailure) {
		t.Error("errors.Is(err, ErrStorageFailure) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Operation != "store" {
		t.Errorf("errors.As() = %v, %+v", se != nil, se)
	}
	want := "journal storage error (sqlite.store): locked"
	if se.Error() != want {
		t.Errorf("Error() = %q, want %q", se.Error(), want)
	}
}
