// Package server runs the turnstile HTTP server.
//
// The server ties the limits manager to its HTTP surface:
//   - POST|GET /v1/limiters/{name}/admit and GET /v1/limiters
//   - liveness, readiness and version probes
//   - the Prometheus metrics endpoint
//   - with gateway.upstream set, every other path is admitted against
//     gateway.default_limiter and forwarded to the upstream
//
// # Lifecycle
//
//	srv, err := server.New(cfg, server.Options{Logger: logger, Version: info})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx) // returns after ctx is cancelled and shutdown completes
//
// Run also schedules the idle sweep and journal retention. With Options.Watch
// the configuration file is watched and Reload swaps in a new limiter set;
// identity state starts fresh after a reload.
package server
