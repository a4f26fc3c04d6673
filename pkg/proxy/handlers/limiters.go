package handlers

import (
	"net/http"

	"mercator-hq/turnstile/pkg/proxy"
	"mercator-hq/turnstile/pkg/proxy/types"
)

// LimitersHandler lists the configured limiters in the order Info
// returns them.
type LimitersHandler struct {
	Limiters Limiters
}

// NewLimitersHandler creates a limiter listing handler.
func NewLimitersHandler(l Limiters) *LimitersHandler {
	return &LimitersHandler{Limiters: l}
}

// ServeHTTP implements http.Handler.
func (h *LimitersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := h.Limiters.Info()

	resp := types.LimitersResponse{Limiters: make([]types.LimiterSummary, 0, len(info))}
	for _, li := range info {
		resp.Limiters = append(resp.Limiters, types.LimiterSummary{
			Name:       li.Name,
			Strategy:   string(li.Strategy),
			Identities: li.Identities,
		})
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, resp)
}
