package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

// Checker makes admission decisions. *limits.Manager satisfies it; the
// server passes a wrapper that follows configuration reloads.
type Checker interface {
	Check(ctx context.Context, name, identity string) (*limits.Decision, error)
}

// Limiter headers set on every admission response.
const (
	LimiterHeader  = "X-RateLimit-Limiter"
	StrategyHeader = "X-RateLimit-Strategy"
)

// AdmissionMiddleware admits or rejects each request with the named
// limiter before it reaches next.
//
// The identity comes from extractor. Requests without one get 400;
// requests the limiter rejects get 429 with a JSON error. Admitted
// requests continue with the limiter and identity attached to their
// context for logging.
//
// Example:
//
//	extractor, _ := proxy.NewIdentityExtractor("header", "X-User-ID")
//	handler = AdmissionMiddleware(manager, "api", extractor, logger)(gateway)
func AdmissionMiddleware(checker Checker, limiter string, extractor *proxy.IdentityExtractor, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admission")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLimiter(r.Context(), limiter)

			identity, err := extractor.Extract(r)
			if err != nil {
				logger.DebugContext(ctx, "request without identity",
					"source", string(extractor.Source),
				)
				_ = proxy.WriteErrorResponse(w, types.NewMissingIdentityError(
					"request carries no identity", extractor.Param(),
				))
				return
			}

			decision, err := checker.Check(ctx, limiter, identity)
			if err != nil {
				if errors.Is(err, limits.ErrUnknownLimiter) {
					logger.ErrorContext(ctx, "gateway limiter missing", "error", err)
				}
				_ = proxy.WriteErrorResponse(w, types.NewServerError("admission check failed"))
				return
			}

			w.Header().Set(LimiterHeader, decision.Limiter)
			w.Header().Set(StrategyHeader, string(decision.Strategy))

			if !decision.Allowed {
				_ = proxy.WriteErrorResponse(w, types.NewRateLimitError(limiter))
				return
			}

			ctx = logging.WithIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
