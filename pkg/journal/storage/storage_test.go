package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

var epoch = time.Unix(1_700_000_000, 0).UTC()

// backends returns a fresh instance of every backend that runs without cgo.
func backends(t *testing.T) map[string]journal.Storage {
	t.Helper()

	sqlite, err := NewSQLiteStorage(&SQLiteConfig{
		Driver:  DriverModernc,
		Path:    filepath.Join(t.TempDir(), "journal.db"),
		WALMode: true,
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]journal.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

// seed stores ten records one second apart. Odd records are rejected,
// records 0-4 belong to "api" and 5-9 to "login".
func seed(t *testing.T, s journal.Storage) {
	t.Helper()

	for i := 0; i < 10; i++ {
		limiter := "api"
		if i >= 5 {
			limiter = "login"
		}
		rec := &journal.Record{
			ID:        fmt.Sprintf("rec-%02d", i),
			Timestamp: epoch.Add(time.Duration(i) * time.Second),
			RequestID: fmt.Sprintf("req-%d", i),
			Limiter:   limiter,
			Strategy:  "token_bucket",
			Identity:  fmt.Sprintf("user-%d", i%3),
			Allowed:   i%2 == 0,
		}
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func ids(records []*journal.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ==================== Query Tests ====================

func TestStorage_Query(t *testing.T) {
	rejected := false
	since := epoch.Add(3 * time.Second)
	until := epoch.Add(6 * time.Second)

	tests := []struct {
		name  string
		query *journal.Query
		want  []string
	}{
		{
			name:  "nil query newest first",
			query: nil,
			want:  []string{"rec-09", "rec-08", "rec-07", "rec-06", "rec-05", "rec-04", "rec-03", "rec-02", "rec-01", "rec-00"},
		},
		{
			name:  "ascending with limit",
			query: &journal.Query{Order: journal.OrderAsc, Limit: 3},
			want:  []string{"rec-00", "rec-01", "rec-02"},
		},
		{
			name:  "offset",
			query: &journal.Query{Order: journal.OrderAsc, Limit: 2, Offset: 4},
			want:  []string{"rec-04", "rec-05"},
		},
		{
			name:  "offset past end",
			query: &journal.Query{Offset: 50},
			want:  []string{},
		},
		{
			name:  "time range",
			query: &journal.Query{Since: &since, Until: &until, Order: journal.OrderAsc},
			want:  []string{"rec-03", "rec-04", "rec-05"},
		},
		{
			name:  "limiter",
			query: &journal.Query{Limiter: "login", Order: journal.OrderAsc},
			want:  []string{"rec-05", "rec-06", "rec-07", "rec-08", "rec-09"},
		},
		{
			name:  "rejected only",
			query: &journal.Query{Allowed: &rejected, Order: journal.OrderAsc},
			want:  []string{"rec-01", "rec-03", "rec-05", "rec-07", "rec-09"},
		},
		{
			name:  "identity",
			query: &journal.Query{Identity: "user-0", Order: journal.OrderAsc},
			want:  []string{"rec-00", "rec-03", "rec-06", "rec-09"},
		},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), tt.query)
				if err != nil {
					t.Fatalf("Query() error = %v", err)
				}
				if !equal(ids(got), tt.want) {
					t.Errorf("Query() = %v, want %v", ids(got), tt.want)
				}
			})
		}
	}
}

func TestStorage_RoundTripFields(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := &journal.Record{
				ID:        "only",
				Timestamp: epoch.Add(123 * time.Nanosecond),
				RequestID: "req-x",
				Limiter:   "api",
				Strategy:  "leaky_bucket",
				Identity:  "5f0c1a2b3c4d5e6f",
				Allowed:   true,
			}
			if err := s.Store(context.Background(), in); err != nil {
				t.Fatalf("Store() error = %v", err)
			}
			got, err := s.Query(context.Background(), &journal.Query{})
			if err != nil || len(got) != 1 {
				t.Fatalf("Query() = %d records, %v", len(got), err)
			}
			out := got[0]
			if !out.Timestamp.Equal(in.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", out.Timestamp, in.Timestamp)
			}
			if out.ID != in.ID || out.RequestID != in.RequestID || out.Limiter != in.Limiter ||
				out.Strategy != in.Strategy || out.Identity != in.Identity || out.Allowed != in.Allowed {
				t.Errorf("record = %+v, want %+v", out, in)
			}
		})
	}
}

// ==================== Count / Delete Tests ====================

func TestStorage_CountAndDeleteBefore(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			n, err := s.Count(ctx, nil)
			if err != nil || n != 10 {
				t.Fatalf("Count() = %d, %v; want 10", n, err)
			}
			n, err = s.Count(ctx, &journal.Query{Limiter: "api"})
			if err != nil || n != 5 {
				t.Fatalf("Count(api) = %d, %v; want 5", n, err)
			}

			deleted, err := s.DeleteBefore(ctx, epoch.Add(4*time.Second))
			if err != nil {
				t.Fatalf("DeleteBefore() error = %v", err)
			}
			if deleted != 4 {
				t.Errorf("DeleteBefore() = %d, want 4", deleted)
			}

			n, _ = s.Count(ctx, nil)
			if n != 6 {
				t.Errorf("Count() after delete = %d, want 6", n)
			}
		})
	}
}

// ==================== Lifecycle Tests ====================

func TestMemoryStorage_Closed(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	s.Close()

	err := s.Store(ctx, &journal.Record{ID: "x"})
	if !errors.Is(err, journal.ErrClosed) || !errors.Is(err, journal.ErrStorageFailure) {
		t.Errorf("Store() after Close = %v", err)
	}
	if err := s.Ping(ctx); err == nil {
		t.Error("Ping() after Close succeeded")
	}
}

func TestSQLiteStorage_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	cfg := &SQLiteConfig{Driver: DriverModernc, Path: path, Logger: logging.Discard()}

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	seed(t, s)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	n, err := s.Count(context.Background(), nil)
	if err != nil || n != 10 {
		t.Errorf("Count() after reopen = %d, %v; want 10", n, err)
	}
}

func TestSQLiteStorage_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *SQLiteConfig
	}{
		{"nil", nil},
		{"no path", &SQLiteConfig{Driver: DriverModernc}},
		{"unknown driver", &SQLiteConfig{Driver: "postgres", Path: filepath.Join(t.TempDir(), "x.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSQLiteStorage(tt.cfg)
			if !errors.Is(err, journal.ErrStorageFailure) {
				t.Errorf("NewSQLiteStorage() error = %v, want storage failure", err)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  SQLiteConfig
		want string
	}{
		{
			name: "modernc with WAL",
			cfg:  SQLiteConfig{Driver: DriverModernc, Path: "j.db", WALMode: true, BusyTimeout: 2 * time.Second},
			want: "file:j.db?_pragma=busy_timeout%282000%29&_pragma=journal_mode%28WAL%29",
		},
		{
			name: "mattn without WAL",
			cfg:  SQLiteConfig{Driver: DriverMattn, Path: "j.db", BusyTimeout: time.Second},
			want: "file:j.db?_busy_timeout=1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(&tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(&config.JournalConfig{Backend: "memory"}, logging.Discard())
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	s, err = Open(&config.JournalConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Driver: DriverModernc, Path: filepath.Join(t.TempDir(), "j.db")},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStorage); !ok {
		t.Errorf("Open(sqlite) = %T", s)
	}

	if _, err := Open(&config.JournalConfig{Backend: "redis"}, logging.Discard()); err == nil {
		t.Error("Open(redis) succeeded")
	}
}
