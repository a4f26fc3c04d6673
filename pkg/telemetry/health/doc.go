// Package health provides liveness, readiness and version endpoints.
//
// # Endpoints
//
// Paths are configurable under telemetry.health:
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 200 when every registered check passes, else 503
//   - /version: build information
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("limiters", health.LimitersCheck(srv.LimiterCount))
//	checker.RegisterCheck("journal", health.PingCheck(store))
//	health.Mount(mux, checker, cfg.Telemetry.Health, info)
//
// Readiness checks run concurrently and each is bounded by the check
// timeout, so one slow dependency cannot stall the probe.
package health
