package journal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/telemetry/logging"
	"mercator-hq/turnstile/pkg/telemetry/metrics"
)

// sliceStorage is a minimal Storage that keeps records in insertion order.
type sliceStorage struct {
	mu      sync.Mutex
	records []*Record
	err     error

	// started, when set, is closed on the first Store call, which then
	// waits for release.
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *sliceStorage) Store(ctx context.Context, r *Record) error {
	if s.started != nil {
		first := false
		s.once.Do(func() {
			close(s.started)
			first = true
		})
		if first {
			<-s.release
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *sliceStorage) Query(context.Context, *Query) ([]*Record, error) { return nil, nil }
func (s *sliceStorage) Count(context.Context, *Query) (int64, error)     { return 0, nil }
func (s *sliceStorage) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (s *sliceStorage) Ping(context.Context) error { return nil }
func (s *sliceStorage) Close() error               { return nil }

func (s *sliceStorage) all() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Record(nil), s.records...)
}

func decision(identity string, allowed bool) *limits.Decision {
	return &limits.Decision{
		Limiter:   "api",
		Strategy:  ratelimit.StrategyTokenBucket,
		Identity:  identity,
		Allowed:   allowed,
		Timestamp: time.Unix(1_700_000_000, 0),
		RequestID: "req-" + identity,
	}
}

const recordsHeader = `
# HELP turnstile_journal_records_total Total number of journal records by outcome
# TYPE turnstile_journal_records_total counter
`

// ==================== Mode Tests ====================

func TestRecorder_RejectedModeSkipsAdmitted(t *testing.T) {
	store := &sliceStorage{}
	r := NewRecorder(store, &RecorderConfig{Mode: ModeRejected, HashIdentities: true, Logger: logging.Discard()})

	ctx := context.Background()
	r.RecordDecision(ctx, decision("alice", true))
	r.RecordDecision(ctx, decision("bob", false))
	r.RecordDecision(ctx, decision("carol", true))
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := store.all()
	if len(got) != 1 {
		t.Fatalf("stored %d records, want 1", len(got))
	}
	rec := got[0]
	if rec.Allowed {
		t.Error("stored record is allowed, want rejected")
	}
	if rec.Identity != logging.Fingerprint("bob") {
		t.Errorf("Identity = %q, want fingerprint of bob", rec.Identity)
	}
	if rec.RequestID != "req-bob" {
		t.Errorf("RequestID = %q, want req-bob", rec.RequestID)
	}
	if rec.Strategy != string(ratelimit.StrategyTokenBucket) {
		t.Errorf("Strategy = %q", rec.Strategy)
	}
	if rec.ID == "" {
		t.Error("ID is empty")
	}
}

func TestRecorder_AllModeKeepsRawIdentities(t *testing.T) {
	store := &sliceStorage{}
	r := NewRecorder(store, &RecorderConfig{Mode: ModeAll, Logger: logging.Discard()})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		r.RecordDecision(ctx, decision(id, id != "b"))
	}
	r.Close()

	got := store.all()
	if len(got) != 3 {
		t.Fatalf("stored %d records, want 3", len(got))
	}
	seen := map[string]bool{}
	ids := map[string]bool{}
	for _, rec := range got {
		seen[rec.Identity] = rec.Allowed
		ids[rec.ID] = true
	}
	if !seen["a"] || seen["b"] || !seen["c"] {
		t.Errorf("unexpected outcomes: %v", seen)
	}
	if len(ids) != 3 {
		t.Errorf("record IDs not unique: %v", ids)
	}
}

func TestRecorder_DefaultsAndNilDecision(t *testing.T) {
	store := &sliceStorage{}
	r := NewRecorder(store, nil)
	defer r.Close()

	if r.config.Mode != ModeRejected {
		t.Errorf("Mode = %q, want %q", r.config.Mode, ModeRejected)
	}
	if cap(r.queue) <= 0 {
		t.Error("queue has no capacity")
	}

	r.RecordDecision(context.Background(), nil)
}

// ==================== Backpressure Tests ====================

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &sliceStorage{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewRecorder(store, &RecorderConfig{
		Mode:        ModeAll,
		AsyncBuffer: 1,
		Metrics:     metrics.NewServerMetrics(reg),
		Logger:      logging.Discard(),
	})

	ctx := context.Background()
	r.RecordDecision(ctx, decision("first", false))
	<-store.started

	done := make(chan struct{})
	go func() {
		r.RecordDecision(ctx, decision("queued", false))
		r.RecordDecision(ctx, decision("dropped", false))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordDecision blocked on a full queue")
	}

	close(store.release)
	r.Close()

	if got := len(store.all()); got != 2 {
		t.Errorf("stored %d records, want 2", got)
	}

	expected := recordsHeader + `turnstile_journal_records_total{result="dropped"} 1
turnstile_journal_records_total{result="written"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "turnstile_journal_records_total"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_StoreFailureCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &sliceStorage{err: errors.New("disk full")}
	r := NewRecorder(store, &RecorderConfig{
		Mode:    ModeAll,
		Metrics: metrics.NewServerMetrics(reg),
		Logger:  logging.Discard(),
	})

	r.RecordDecision(context.Background(), decision("x", true))
	r.Close()

	expected := recordsHeader + `turnstile_journal_records_total{result="failed"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "turnstile_journal_records_total"); err != nil {
		t.Error(err)
	}
}

// ==================== Lifecycle Tests ====================

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	store := &sliceStorage{}
	r := NewRecorder(store, &RecorderConfig{Mode: ModeAll, AsyncBuffer: 100, Logger: logging.Discard()})

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		r.RecordDecision(ctx, decision("id", false))
	}
	r.Close()

	if got := len(store.all()); got != 50 {
		t.Errorf("stored %d records after Close, want 50", got)
	}
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &sliceStorage{}
	r := NewRecorder(store, &RecorderConfig{
		Mode:    ModeAll,
		Metrics: metrics.NewServerMetrics(reg),
		Logger:  logging.Discard(),
	})

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	r.RecordDecision(context.Background(), decision("late", false))

	if got := len(store.all()); got != 0 {
		t.Errorf("stored %d records after Close, want 0", got)
	}
	expected := recordsHeader + `turnstile_journal_records_total{result="dropped"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "turnstile_journal_records_total"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_CloseRacingRecordDecision(t *testing.T) {
	const (
		writers   = 8
		perWriter = 200
	)

	for round := 0; round < 20; round++ {
		reg := prometheus.NewRegistry()
		store := &sliceStorage{}
		r := NewRecorder(store, &RecorderConfig{
			Mode:        ModeAll,
			AsyncBuffer: writers * perWriter,
			Metrics:     metrics.NewServerMetrics(reg),
			Logger:      logging.Discard(),
		})

		ctx := context.Background()
		start := make(chan struct{})
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					r.RecordDecision(ctx, decision("id", false))
				}
			}()
		}

		close(start)
		r.Close()
		wg.Wait()

		stored := len(store.all())
		dropped := journalCount(t, reg, "dropped")
		if stored+dropped != writers*perWriter {
			t.Fatalf("round %d: stored %d + dropped %d = %d, want %d",
				round, stored, dropped, stored+dropped, writers*perWriter)
		}
	}
}

// journalCount returns turnstile_journal_records_total for result.
func journalCount(t *testing.T, reg *prometheus.Registry, result string) int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "turnstile_journal_records_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return int(m.GetCounter().GetValue())
				}
			}
		}
	}
	return 0
}

// ==================== Manager Integration ====================

func TestRecorder_AsManagerRecorder(t *testing.T) {
	store := &sliceStorage{}
	rec := NewRecorder(store, &RecorderConfig{Mode: ModeRejected, Logger: logging.Discard()})

	clock := ratelimit.NewManualClock(time.Unix(1_700_000_000, 0))
	mgr, err := limits.NewManager(limits.Config{
		Limiters: map[string]ratelimit.Config{
			"login": {
				Strategy:        ratelimit.StrategySlidingWindowLog,
				Window:          time.Minute,
				RequestsAllowed: 2,
			},
		},
		Clock:    clock,
		Recorder: rec,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	ctx := logging.WithRequestID(context.Background(), "req-7")
	for i := 0; i < 4; i++ {
		if _, err := mgr.Check(ctx, "login", "user-1"); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
	}
	rec.Close()

	got := store.all()
	if len(got) != 2 {
		t.Fatalf("stored %d records, want 2 rejections", len(got))
	}
	for _, r := range got {
		if r.Limiter != "login" || r.RequestID != "req-7" || r.Allowed {
			t.Errorf("unexpected record %+v", r)
		}
		if !r.Timestamp.Equal(clock.Now()) {
			t.Errorf("Timestamp = %v, want %v", r.Timestamp, clock.Now())
		}
	}
}
