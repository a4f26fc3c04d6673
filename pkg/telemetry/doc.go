// Package telemetry groups turnstile's observability packages.
//
// # Components
//
//   - logging: slog loggers with identity fingerprinting and context fields
//   - metrics: the Prometheus registry, HTTP and server metrics, /metrics
//   - tracing: OpenTelemetry tracer with OTLP gRPC export and W3C propagation
//   - health: liveness, readiness and version probes
//
// # Usage
//
//	logger, _ := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("limiters", health.LimitersCheck(manager.Len))
//
// Admission metrics live with the manager in package limits and are
// registered on collector.Registry().
//
// # Identity Redaction
//
// Identities are personal data in most deployments. Unless
// telemetry.logging.redact_identities is false, any "identity" attribute
// is logged as a short SHA-256 fingerprint, and bearer tokens and API key
// headers are masked.
package telemetry
