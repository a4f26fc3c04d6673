// Package tracing provides OpenTelemetry tracing for turnstile.
//
// # Overview
//
// When enabled, spans are exported over OTLP gRPC. The HTTP middleware opens
// a server span per request, and the limits manager opens a "limits.check"
// child span per admission check tagged with the limiter, its strategy and
// the decision. When disabled, New returns a noop tracer.
//
// # Trace Context Propagation
//
// W3C Trace Context headers are extracted from incoming requests and
// injected into requests the gateway forwards upstream:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling
//
// Three strategies are supported, each wrapped in ParentBased:
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version.Version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	manager, err := limits.NewManager(limits.Config{Tracer: tracer, ...})
package tracing
