package server

import (
	"fmt"
	"net/http"

	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/handlers"
	"mercator-hq/turnstile/pkg/proxy/middleware"
	"mercator-hq/turnstile/pkg/telemetry/health"
)

// Readiness runs every check, including a journal ping, so it gets its
// own small quota shared by all callers.
const (
	readinessBurst = 20
	readinessRate  = 10
)

// routeMux registers handlers through middleware.Routed so outer
// middleware sees the matched pattern. Patterns listed in guard are
// additionally rate limited.
type routeMux struct {
	mux   *http.ServeMux
	guard map[string]ratelimit.Limiter
}

func (m routeMux) Handle(pattern string, handler http.Handler) {
	handler = health.RateLimitedHandler(handler, m.guard[pattern])
	m.mux.Handle(pattern, middleware.Routed(handler))
}

// setupRoutes builds the mux and wraps it in the middleware chain.
func (s *Server) setupRoutes() (http.Handler, error) {
	cfg := s.config

	probe, err := ratelimit.NewLeakyBucket(readinessBurst, readinessRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe limiter: %w", err)
	}

	mux := routeMux{
		mux:   http.NewServeMux(),
		guard: map[string]ratelimit.Limiter{cfg.Telemetry.Health.ReadinessPath: probe},
	}

	identity, err := proxy.NewIdentityExtractor(string(proxy.IdentityFromHeader), cfg.Gateway.IdentityHeader)
	if err != nil {
		return nil, err
	}

	admit := handlers.NewAdmitHandler(s.limiters, identity, s.logger)
	mux.Handle("POST /v1/limiters/{name}/admit", admit)
	mux.Handle("GET /v1/limiters/{name}/admit", admit)
	mux.Handle("GET /v1/limiters", handlers.NewLimitersHandler(s.limiters))

	health.Mount(mux, s.health, cfg.Telemetry.Health, s.version)

	if s.collector.Enabled() {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}

	if cfg.Gateway.Upstream != "" {
		gateway, err := s.setupGateway()
		if err != nil {
			return nil, err
		}
		mux.Handle("/", gateway)
	}

	var handler http.Handler = mux.mux

	handler = middleware.MetricsMiddleware(s.collector)(handler)
	handler = middleware.TracingMiddleware(s.tracer)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler, nil
}

// setupGateway builds the admission-guarded reverse proxy.
func (s *Server) setupGateway() (http.Handler, error) {
	cfg := s.config.Gateway

	gateway, err := proxy.NewGateway(cfg.Upstream, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	extractor, err := proxy.NewIdentityExtractor(cfg.IdentitySource, cfg.IdentityHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	var handler http.Handler = gateway
	handler = middleware.AdmissionMiddleware(s.limiters, cfg.DefaultLimiter, extractor, s.logger)(handler)
	handler = middleware.TimeoutMiddleware(cfg.Timeout)(handler)

	s.logger.Info("gateway enabled",
		"upstream", gateway.Upstream().String(),
		"limiter", cfg.DefaultLimiter,
		"identity_source", string(extractor.Source),
	)
	return handler, nil
}
