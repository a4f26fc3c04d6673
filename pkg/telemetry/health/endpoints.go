package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// NewVersionInfo fills GoVersion from the running binary.
func NewVersionInfo(version, commit, buildTime string) VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// LivenessHandler returns the handler for the liveness probe.
//
//	{"status": "ok", "timestamp": "2026-01-20T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbeMethod(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns the handler for the readiness probe. It answers
// 200 when every check passes and 503 otherwise.
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "limiters": {"status": "ok"},
//	        "journal": {"status": "unhealthy", "message": "database is locked"}
//	    },
//	    "timestamp": "2026-01-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbeMethod(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns the handler for the version endpoint.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbeMethod(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Mux is the part of *http.ServeMux that Mount uses.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Mount registers the probe endpoints on mux at the configured paths.
// Nothing is mounted when health endpoints are disabled.
func Mount(mux Mux, checker *Checker, cfg config.HealthConfig, info VersionInfo) {
	if !cfg.Enabled {
		return
	}

	mux.Handle(cfg.LivenessPath, checker.LivenessHandler())
	mux.Handle(cfg.ReadinessPath, checker.ReadinessHandler())
	mux.Handle(cfg.VersionPath, VersionHandler(info))
}

// RateLimitedHandler protects a probe endpoint from abuse. Requests the
// limiter rejects get 429; all callers share one quota.
//
//	lb, _ := ratelimit.NewLeakyBucket(20, 10)
//	mux.Handle("/ready", health.RateLimitedHandler(checker.ReadinessHandler(), lb))
func RateLimitedHandler(handler http.Handler, limiter ratelimit.Limiter) http.Handler {
	if limiter == nil {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow("") {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func allowProbeMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
