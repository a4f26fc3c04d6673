package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/turnstile/pkg/config"
)

func newTestCollector(enabled bool) *Collector {
	return NewCollector(&config.MetricsConfig{Enabled: enabled, Path: "/metrics"}, prometheus.NewRegistry())
}

// ==== Collector ====

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	if collector.Registry() != registry {
		t.Error("collector should use the given registry")
	}
	if !collector.Enabled() {
		t.Error("expected collector enabled")
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var sawGo bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			sawGo = true
			break
		}
	}
	if !sawGo {
		t.Error("expected Go runtime metrics to be registered")
	}
}

func TestCollector_NilRegistry(t *testing.T) {
	collector := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	if collector.Registry() == nil {
		t.Fatal("expected a registry to be created")
	}
}

func TestCollector_Disabled(t *testing.T) {
	collector := newTestCollector(false)

	if collector.Requests() != nil || collector.Server() != nil {
		t.Error("disabled collector should hand out nil metrics")
	}

	// Nil metrics are safe to use.
	collector.Requests().Begin()
	collector.Requests().RecordRequest("/", "GET", 200, time.Millisecond)
	collector.Server().RecordReload(nil, time.Now())
	collector.Server().RecordJournal(JournalDropped)
}

func TestCollector_Route(t *testing.T) {
	collector := newTestCollector(true)

	if got := collector.Route(""); got != "unmatched" {
		t.Errorf("Route(\"\") = %q", got)
	}
	for i := 0; i < DefaultMaxRoutes; i++ {
		route := fmt.Sprintf("/r/%d", i)
		if got := collector.Route(route); got != route {
			t.Fatalf("Route(%q) = %q before the limit", route, got)
		}
	}
	if got := collector.Route("/one-too-many"); got != "other" {
		t.Errorf("expected overflow route to be other, got %q", got)
	}
	if got := collector.Route("/r/0"); got != "/r/0" {
		t.Errorf("known route should keep its label, got %q", got)
	}
}

// ==== Request metrics ====

func TestRequestMetrics_RecordRequest(t *testing.T) {
	collector := newTestCollector(true)
	rm := collector.Requests()

	rm.Begin()
	if got := testutil.ToFloat64(rm.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	rm.RecordRequest("POST /v1/limiters/{name}/admit", "POST", 429, 2*time.Millisecond)

	if got := testutil.ToFloat64(rm.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("POST /v1/limiters/{name}/admit", "POST", "429")); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(rm.requestDuration); n != 1 {
		t.Errorf("expected 1 duration series, got %d", n)
	}
}

// ==== Server metrics ====

func TestServerMetrics_RecordReload(t *testing.T) {
	sm := newTestCollector(true).Server()
	at := time.Unix(1700000000, 0)

	sm.RecordReload(nil, at)
	sm.RecordReload(errors.New("invalid"), at.Add(time.Minute))

	if got := testutil.ToFloat64(sm.reloads.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("successful reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.reloads.WithLabelValues(ResultFailure)); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.lastReload); got != 1700000000 {
		t.Errorf("last reload = %v, want the successful reload time", got)
	}
}

func TestServerMetrics_Journal(t *testing.T) {
	sm := newTestCollector(true).Server()

	sm.RecordJournal(JournalWritten)
	sm.RecordJournal(JournalWritten)
	sm.RecordJournal(JournalDropped)
	sm.RecordPruned(5)
	sm.RecordPruned(0)

	if got := testutil.ToFloat64(sm.journalRecords.WithLabelValues(JournalWritten)); got != 2 {
		t.Errorf("written = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sm.journalRecords.WithLabelValues(JournalDropped)); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.journalPruned); got != 5 {
		t.Errorf("pruned = %v, want 5", got)
	}
}

// ==== Handler ====

func TestCollector_Handler(t *testing.T) {
	collector := newTestCollector(true)
	collector.Server().SetBuildInfo("v1.2.3")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `turnstile_build_info{version="v1.2.3"} 1`) {
		t.Errorf("build info missing from output:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("first two values should be allowed")
	}
	if cl.Allow("c") {
		t.Error("third value should be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known value should be allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}
