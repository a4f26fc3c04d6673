// Package metrics provides the process-wide Prometheus registry for turnstile.
//
// # Metrics Categories
//
//   - HTTP: request count, latency and in-flight requests by route
//   - Server: configuration reloads, journal record outcomes, build info
//   - Runtime: Go and process collectors
//
// Admission metrics (turnstile_limits_*) are defined in package limits and
// registered on the same registry.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Methods on the per-area metric types are nil-safe, so a disabled
// collector can hand out nil values and callers record unconditionally.
package metrics
