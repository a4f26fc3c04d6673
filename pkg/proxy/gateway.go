package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"mercator-hq/turnstile/pkg/proxy/types"
	"mercator-hq/turnstile/pkg/telemetry/tracing"
)

// Gateway forwards admitted requests to an upstream service.
type Gateway struct {
	upstream *url.URL
	proxy    *httputil.ReverseProxy
	logger   *slog.Logger
}

// NewGateway creates a gateway for upstream, which must be an absolute
// http or https URL.
func NewGateway(upstream string, logger *slog.Logger) (*Gateway, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpstream, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpstream, upstream)
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		upstream: u,
		logger:   logger.With("component", "proxy.gateway"),
	}
	g.proxy = &httputil.ReverseProxy{
		Rewrite:      g.rewrite,
		ErrorHandler: g.handleError,
	}
	return g, nil
}

// Upstream returns the upstream URL.
func (g *Gateway) Upstream() *url.URL {
	return g.upstream
}

// ServeHTTP forwards r to the upstream.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.proxy.ServeHTTP(w, r)
}

func (g *Gateway) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(g.upstream)
	pr.SetXForwarded()
	tracing.Inject(pr.In.Context(), pr.Out.Header)
}

func (g *Gateway) handleError(w http.ResponseWriter, r *http.Request, err error) {
	errResp := types.NewBadGatewayError("upstream request failed")
	if errors.Is(err, context.DeadlineExceeded) {
		errResp = types.NewGatewayTimeoutError("upstream request timed out")
	}

	g.logger.ErrorContext(r.Context(), "upstream request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"upstream", g.upstream.Host,
		"error", err,
	)

	_ = WriteErrorResponse(w, errResp)
}
