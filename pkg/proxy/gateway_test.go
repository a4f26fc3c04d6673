package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

func TestNewGateway_InvalidUpstream(t *testing.T) {
	for _, upstream := range []string{"", "localhost:9000", "ftp://example.com", "http://", "://bad"} {
		t.Run(upstream, func(t *testing.T) {
			if _, err := NewGateway(upstream, logging.Discard()); !errors.Is(err, ErrInvalidUpstream) {
				t.Errorf("NewGateway(%q) error = %v, want ErrInvalidUpstream", upstream, err)
			}
		})
	}
}

func TestGateway_Forwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-Query", r.URL.RawQuery)
		w.Header().Set("X-Seen-Forwarded-For", r.Header.Get("X-Forwarded-For"))
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-ID"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "upstream body")
	}))
	defer upstream.Close()

	g, err := NewGateway(upstream.URL+"/base", logging.Discard())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	if g.Upstream().Host == "" {
		t.Error("Upstream() has no host")
	}

	req := httptest.NewRequest(http.MethodGet, "/orders?page=2", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
	if got := w.Body.String(); got != "upstream body" {
		t.Errorf("body = %q", got)
	}
	checks := map[string]string{
		"X-Seen-Path":          "/base/orders",
		"X-Seen-Query":         "page=2",
		"X-Seen-Forwarded-For": "192.0.2.10",
		"X-Seen-User":          "alice",
	}
	for h, want := range checks {
		if got := w.Header().Get(h); got != want {
			t.Errorf("%s = %q, want %q", h, got, want)
		}
	}
}

func TestGateway_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	g, err := NewGateway(url, logging.Discard())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != types.CodeUpstreamError {
		t.Errorf("code = %q, want %q", body.Error.Code, types.CodeUpstreamError)
	}
}
