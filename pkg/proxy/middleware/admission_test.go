package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

func newManager(t *testing.T) *limits.Manager {
	t.Helper()
	m, err := limits.NewManager(limits.Config{
		Limiters: map[string]ratelimit.Config{
			"api": {
				Strategy:        ratelimit.StrategySlidingWindowLog,
				Window:          time.Minute,
				RequestsAllowed: 2,
			},
		},
		Clock:  ratelimit.NewManualClock(time.Unix(1_700_000_000, 0)),
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

type failingChecker struct{ err error }

func (f failingChecker) Check(context.Context, string, string) (*limits.Decision, error) {
	return nil, f.err
}

func TestAdmissionMiddleware(t *testing.T) {
	extractor, err := proxy.NewIdentityExtractor("header", "X-User-ID")
	if err != nil {
		t.Fatal(err)
	}

	var reached []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = append(reached, logging.GetIdentity(r.Context()))
		if got := logging.GetLimiter(r.Context()); got != "api" {
			t.Errorf("limiter in context = %q, want api", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AdmissionMiddleware(newManager(t), "api", extractor, logging.Discard())(next)

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// ==================== Admit then reject ====================

	for i := 0; i < 2; i++ {
		if w := send("alice"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want 204", i, w.Code)
		}
	}

	w := send("alice")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Type != types.ErrorTypeRateLimitExceeded {
		t.Errorf("error type = %q", body.Error.Type)
	}
	if got := w.Header().Get(LimiterHeader); got != "api" {
		t.Errorf("%s = %q", LimiterHeader, got)
	}
	if got := w.Header().Get(StrategyHeader); got != string(ratelimit.StrategySlidingWindowLog) {
		t.Errorf("%s = %q", StrategyHeader, got)
	}

	// Identities are independent.
	if w := send("bob"); w.Code != http.StatusNoContent {
		t.Errorf("bob status = %d, want 204", w.Code)
	}

	if len(reached) != 3 || reached[0] != "alice" || reached[2] != "bob" {
		t.Errorf("next reached with %v", reached)
	}

	// ==================== Missing identity ====================

	w = send("")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("anonymous status = %d, want 400", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != types.CodeMissingIdentity || body.Error.Param != "X-User-ID" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestAdmissionMiddleware_CheckError(t *testing.T) {
	extractor, _ := proxy.NewIdentityExtractor("remote_addr", "")

	for _, err := range []error{limits.ErrUnknownLimiter, errors.New("boom")} {
		handler := AdmissionMiddleware(failingChecker{err: err}, "api", extractor, logging.Discard())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next must not be called")
			}),
		)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500 for %v", w.Code, err)
		}
	}
}
