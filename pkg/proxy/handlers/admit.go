package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/middleware"
	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

// IdentityParam is the query parameter that names the identity to check.
const IdentityParam = "identity"

// AdmitHandler answers admission checks for one identity against a named
// limiter. It is mounted on a pattern with a {name} wildcard:
//
//	mux.Handle("POST /v1/limiters/{name}/admit", handlers.NewAdmitHandler(m, extractor, logger))
//
// The identity comes from the "identity" query parameter, falling back to
// the extractor. Admitted requests get 200, rejected ones 429; both carry
// an AdmitResponse body.
type AdmitHandler struct {
	Limiters  Limiters
	Extractor *proxy.IdentityExtractor
	logger    *slog.Logger
}

// NewAdmitHandler creates an admission handler.
func NewAdmitHandler(l Limiters, extractor *proxy.IdentityExtractor, logger *slog.Logger) *AdmitHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdmitHandler{
		Limiters:  l,
		Extractor: extractor,
		logger:    logger.With("component", "admit"),
	}
}

// ServeHTTP implements http.Handler.
func (h *AdmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := logging.WithLimiter(r.Context(), name)

	identity, err := h.identity(r)
	if err != nil {
		_ = proxy.WriteErrorResponse(w, types.NewMissingIdentityError(
			"request carries no identity", h.param(),
		))
		return
	}
	ctx = logging.WithIdentity(ctx, identity)

	decision, err := h.Limiters.Check(ctx, name, identity)
	switch {
	case errors.Is(err, limits.ErrUnknownLimiter):
		_ = proxy.WriteErrorResponse(w, types.NewUnknownLimiterError(name))
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "admission check failed", "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("admission check failed"))
		return
	}

	w.Header().Set(middleware.LimiterHeader, decision.Limiter)
	w.Header().Set(middleware.StrategyHeader, string(decision.Strategy))

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusTooManyRequests
	}

	_ = proxy.WriteJSONResponse(w, status, types.AdmitResponse{
		Allowed:   decision.Allowed,
		Limiter:   decision.Limiter,
		Strategy:  string(decision.Strategy),
		RequestID: decision.RequestID,
		Timestamp: decision.Timestamp,
	})
}

func (h *AdmitHandler) identity(r *http.Request) (string, error) {
	if id := r.URL.Query().Get(IdentityParam); id != "" {
		return id, nil
	}
	if h.Extractor == nil {
		return "", proxy.ErrMissingIdentity
	}
	return h.Extractor.Extract(r)
}

func (h *AdmitHandler) param() string {
	if h.Extractor == nil {
		return IdentityParam
	}
	return IdentityParam + " or " + h.Extractor.Param()
}
