package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/turnstile/pkg/config"
)

// Namespace prefixes every turnstile metric.
const Namespace = "turnstile"

// DefaultMaxRoutes bounds the number of distinct route labels.
const DefaultMaxRoutes = 256

// Collector owns the process metrics registry.
//
// It registers the Go and process collectors, HTTP request metrics and
// the server's own counters (config reloads, journal writes). Admission
// metrics are registered on the same registry by limits.NewMetrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	serverMetrics  *ServerMetrics

	routes *CardinalityLimiter
}

// NewCollector creates a collector. If registry is nil a new one is created.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	manager, _ := limits.NewManager(limits.Config{
//		Metrics: limits.NewMetrics(collector.Registry()),
//	})
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(registry),
		serverMetrics:  NewServerMetrics(registry),
		routes:         NewCardinalityLimiter(DefaultMaxRoutes),
	}
}

// Enabled reports whether metrics are collected.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// Requests returns the HTTP request metrics, or nil when disabled.
func (c *Collector) Requests() *RequestMetrics {
	if !c.Enabled() {
		return nil
	}
	return c.requestMetrics
}

// Server returns the server metrics, or nil when disabled.
func (c *Collector) Server() *ServerMetrics {
	if !c.Enabled() {
		return nil
	}
	return c.serverMetrics
}

// Route maps a route to the label recorded for it. Past DefaultMaxRoutes
// distinct values, new routes are recorded as "other".
func (c *Collector) Route(route string) string {
	if route == "" {
		return "unmatched"
	}
	if !c.routes.Allow(route) {
		return "other"
	}
	return route
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label: it was seen before
// or the limit has not been reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
