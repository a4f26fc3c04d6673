package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/middleware"
	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestMux(t *testing.T) (*http.ServeMux, *ratelimit.ManualClock) {
	t.Helper()

	clock := ratelimit.NewManualClock(epoch)
	m, err := limits.NewManager(limits.Config{
		Limiters: map[string]ratelimit.Config{
			"api": {
				Strategy:        ratelimit.StrategySlidingWindowLog,
				Window:          time.Minute,
				RequestsAllowed: 1,
			},
			"burst": {
				Strategy:          ratelimit.StrategyTokenBucket,
				RefillInterval:    time.Second,
				TokensPerInterval: 1,
				Limit:             2,
			},
		},
		Clock:  clock,
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })

	extractor, err := proxy.NewIdentityExtractor("header", "X-User-ID")
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	admit := NewAdmitHandler(m, extractor, logging.Discard())
	mux.Handle("POST /v1/limiters/{name}/admit", admit)
	mux.Handle("GET /v1/limiters/{name}/admit", admit)
	mux.Handle("GET /v1/limiters", NewLimitersHandler(m))
	return mux, clock
}

func do(mux http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

// ==================== Admission ====================

func TestAdmitHandler(t *testing.T) {
	mux, clock := newTestMux(t)

	w := do(mux, http.MethodPost, "/v1/limiters/api/admit?identity=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first admit status = %d, want 200: %s", w.Code, w.Body)
	}
	var got types.AdmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := types.AdmitResponse{
		Allowed:   true,
		Limiter:   "api",
		Strategy:  "sliding_window_log",
		Timestamp: epoch,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if h := w.Header().Get(middleware.StrategyHeader); h != "sliding_window_log" {
		t.Errorf("%s = %q", middleware.StrategyHeader, h)
	}

	w = do(mux, http.MethodGet, "/v1/limiters/api/admit?identity=alice", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second admit status = %d, want 429", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Allowed {
		t.Error("rejected response has allowed = true")
	}

	clock.Advance(time.Minute)
	if w := do(mux, http.MethodPost, "/v1/limiters/api/admit?identity=alice", nil); w.Code != http.StatusOK {
		t.Errorf("admit after window status = %d, want 200", w.Code)
	}
}

func TestAdmitHandler_IdentitySources(t *testing.T) {
	mux, _ := newTestMux(t)

	// The header identity and the query identity share one quota.
	header := http.Header{"X-User-Id": {"bob"}}
	if w := do(mux, http.MethodPost, "/v1/limiters/api/admit", header); w.Code != http.StatusOK {
		t.Fatalf("header identity status = %d, want 200", w.Code)
	}
	if w := do(mux, http.MethodPost, "/v1/limiters/api/admit?identity=bob", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("query identity status = %d, want 429", w.Code)
	}

	// The query parameter wins over the header.
	if w := do(mux, http.MethodPost, "/v1/limiters/api/admit?identity=carol", header); w.Code != http.StatusOK {
		t.Errorf("query over header status = %d, want 200", w.Code)
	}
}

func TestAdmitHandler_Errors(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantErr  string
	}{
		{"unknown limiter", "/v1/limiters/nope/admit?identity=a", http.StatusNotFound, types.CodeUnknownLimiter},
		{"missing identity", "/v1/limiters/api/admit", http.StatusBadRequest, types.CodeMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, http.MethodPost, tt.target, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantErr)
			}
		})
	}
}

func TestAdmitHandler_NoExtractor(t *testing.T) {
	m, err := limits.NewManager(limits.Config{
		Limiters: map[string]ratelimit.Config{
			"global": {Strategy: ratelimit.StrategyLeakyBucket, Capacity: 1, LeakRate: 1},
		},
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	mux := http.NewServeMux()
	mux.Handle("POST /v1/limiters/{name}/admit", NewAdmitHandler(m, nil, nil))

	w := do(mux, http.MethodPost, "/v1/limiters/global/admit", http.Header{"X-User-Id": {"x"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := do(mux, http.MethodPost, "/v1/limiters/global/admit?identity=x", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// ==================== Listing ====================

func TestLimitersHandler(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, id := range []string{"a", "b", "c"} {
		do(mux, http.MethodPost, "/v1/limiters/burst/admit?identity="+id, nil)
	}

	w := do(mux, http.MethodGet, "/v1/limiters", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got types.LimitersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := types.LimitersResponse{Limiters: []types.LimiterSummary{
		{Name: "api", Strategy: "sliding_window_log", Identities: 0},
		{Name: "burst", Strategy: "token_bucket", Identities: 3},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("limiters mismatch (-want +got):\n%s", diff)
	}
}
