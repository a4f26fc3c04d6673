package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/turnstile/pkg/config"
)

func newTestTracer(t *testing.T, sampler string, ratio float64) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     sampler,
		SampleRatio: ratio,
		ServiceName: "turnstile-test",
	}, "test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

// ==== Construction ====

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		enabled bool
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "disabled tracing",
			config:  &config.TracingConfig{Enabled: false, ServiceName: "test"},
			enabled: false,
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test",
				OTLP:        config.OTLPConfig{Insecure: true},
			},
			enabled: true,
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "sometimes",
				Endpoint:    "localhost:4317",
				ServiceName: "test",
				OTLP:        config.OTLPConfig{Insecure: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}
		})
	}
}

func TestDisabledTracer_NoRecording(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if span.IsRecording() {
		t.Error("disabled tracer should not record")
	}
	if TraceID(ctx) != "" {
		t.Errorf("expected empty trace ID, got %q", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

// ==== Spans ====

func TestTracer_ExportsSpans(t *testing.T) {
	tracer, exporter := newTestTracer(t, SamplerAlways, 0)

	ctx, parent := tracer.Start(context.Background(), "http.request")
	_, child := tracer.Start(ctx, "limits.check")
	SetDecisionAttributes(child, "api", "token_bucket", false)
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	check := spans[0]
	if check.Name != "limits.check" {
		t.Fatalf("expected first exported span limits.check, got %q", check.Name)
	}
	if check.Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("limits.check should be a child of http.request")
	}

	attrs := attrMap(check.Attributes)
	if attrs[AttrLimiter].AsString() != "api" {
		t.Errorf("limiter attribute = %v", attrs[AttrLimiter])
	}
	if attrs[AttrStrategy].AsString() != "token_bucket" {
		t.Errorf("strategy attribute = %v", attrs[AttrStrategy])
	}
	if attrs[AttrAllowed].AsBool() {
		t.Error("allowed attribute should be false")
	}
}

func TestTracer_NeverSampler(t *testing.T) {
	tracer, exporter := newTestTracer(t, SamplerNever, 0)

	_, span := tracer.Start(context.Background(), "dropped")
	span.End()

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no exported spans, got %d", n)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	tracer, _ := newTestTracer(t, SamplerAlways, 0)

	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("expected empty IDs without a span")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID() = %q, want 32 hex chars", got)
	}
	if got := SpanID(ctx); len(got) != 16 {
		t.Errorf("SpanID() = %q, want 16 hex chars", got)
	}
}

func TestSetError(t *testing.T) {
	tracer, exporter := newTestTracer(t, SamplerAlways, 0)

	_, span := tracer.Start(context.Background(), "failing")
	SetError(span, nil)
	SetError(span, errors.New("upstream unavailable"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(spans[0].Events))
	}
}

// ==== Sampling ====

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{"", 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.1, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"random", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			}
			if err == nil && s == nil {
				t.Error("expected a sampler")
			}
		})
	}
}

// ==== Propagation ====

func TestExtractInject(t *testing.T) {
	newTestTracer(t, SamplerAlways, 0)

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	in := http.Header{}
	in.Set("traceparent", traceparent)

	ctx := Extract(context.Background(), in)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsRemote() {
		t.Fatalf("expected a valid remote span context, got %+v", sc)
	}
	if sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %s", sc.TraceID())
	}

	out := http.Header{}
	Inject(ctx, out)
	if got := out.Get("traceparent"); got != traceparent {
		t.Errorf("injected traceparent = %q, want %q", got, traceparent)
	}
}

func TestExtract_NoHeaders(t *testing.T) {
	ctx := Extract(context.Background(), http.Header{})
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("expected no span context")
	}
}
