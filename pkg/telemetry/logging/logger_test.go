package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/turnstile/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

// ==== Construction ====

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json", config: Config{Level: "info", Format: "json"}},
		{name: "text", config: Config{Level: "debug", Format: "text"}},
		{name: "console", config: Config{Level: "WARN", Format: "console"}},
		{name: "empty uses defaults", config: Config{}},
		{name: "invalid level", config: Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Error("expected non-nil logger")
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{Level: "debug", Format: "text", AddSource: true, RedactIdentities: true})
	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.AddSource || !cfg.RedactIdentities {
		t.Errorf("FromConfig() = %+v", cfg)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn message, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), 12) {
		t.Error("discard logger should not be enabled")
	}
	logger.Error("nothing happens")
}

// ==== Redaction ====

func TestNew_RedactsIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", RedactIdentities: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("request rejected", "identity", "user-42", "api_key", "sk-secret")

	entry := decodeLine(t, &buf)
	if entry["identity"] != Fingerprint("user-42") {
		t.Errorf("identity = %v, want fingerprint %s", entry["identity"], Fingerprint("user-42"))
	}
	if entry["api_key"] != Masked {
		t.Errorf("api_key = %v, want %s", entry["api_key"], Masked)
	}
	if strings.Contains(buf.String(), "user-42") || strings.Contains(buf.String(), "sk-secret") {
		t.Errorf("raw values leaked: %s", buf.String())
	}
}

func TestNew_IdentityRedactionDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", RedactIdentities: false, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("request rejected", "identity", "user-42", "authorization", "Basic abc")

	entry := decodeLine(t, &buf)
	if entry["identity"] != "user-42" {
		t.Errorf("identity = %v, want raw value", entry["identity"])
	}
	if entry["authorization"] != Masked {
		t.Errorf("credentials must be masked regardless, got %v", entry["authorization"])
	}
}

func TestRedactor_BearerInStrings(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Error("upstream failed", "error", "401 for header Bearer abc.def-123")

	entry := decodeLine(t, &buf)
	if got := entry["error"]; got != "401 for header Bearer ***" {
		t.Errorf("error = %v", got)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Error("empty string should map to itself")
	}

	a := Fingerprint("user-1")
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
	if a != Fingerprint("user-1") {
		t.Error("fingerprint must be stable")
	}
	if a == Fingerprint("user-2") {
		t.Error("different identities should not collide")
	}
}

// ==== Context fields ====

func TestNew_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithLimiter(ctx, "api")

	logger.With("component", "test").InfoContext(ctx, "admitted")

	entry := decodeLine(t, &buf)
	want := map[string]string{
		"request_id": "req-1",
		"limiter":    "api",
		"trace_id":   "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":    "00f067aa0ba902b7",
		"component":  "test",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %s", k, entry[k], v)
		}
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetLimiter(ctx) != "" || GetIdentity(ctx) != "" {
		t.Error("expected empty values from bare context")
	}

	ctx = WithRequestID(ctx, "r")
	ctx = WithLimiter(ctx, "l")
	ctx = WithIdentity(ctx, "i")

	if GetRequestID(ctx) != "r" || GetLimiter(ctx) != "l" || GetIdentity(ctx) != "i" {
		t.Error("context values not round-tripped")
	}
	for _, a := range contextAttrs(ctx) {
		if a.Key == "identity" {
			t.Error("identity must not be added from context")
		}
	}
}
