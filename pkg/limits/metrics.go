package limits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/turnstile/pkg/limits/storage"
)

// Metrics contains Prometheus metrics for admission decisions.
type Metrics struct {
	decisions         *prometheus.CounterVec
	checkDuration     *prometheus.HistogramVec
	trackedIdentities *prometheus.GaugeVec
	evictions         *prometheus.CounterVec
}

// NewMetrics creates admission metrics registered on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_limits_decisions_total",
				Help: "Total number of admission decisions",
			},
			[]string{"limiter", "strategy", "result"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnstile_limits_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 15), // 100ns to 1.6ms
			},
			[]string{"limiter"},
		),

		trackedIdentities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "turnstile_limits_tracked_identities",
				Help: "Number of identities with limiter state",
			},
			[]string{"limiter"},
		),

		evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_limits_evictions_total",
				Help: "Total number of identities removed from limiter state",
			},
			[]string{"limiter", "reason"},
		),
	}
}

// RecordDecision records one admission decision and its latency.
func (m *Metrics) RecordDecision(d *Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(d.Limiter, string(d.Strategy), d.Result()).Inc()
	m.checkDuration.WithLabelValues(d.Limiter).Observe(d.Duration.Seconds())
}

// RecordEvictions records identities leaving a limiter's state.
func (m *Metrics) RecordEvictions(limiter string, reason storage.EvictReason, n int) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(limiter, string(reason)).Add(float64(n))
}

// SetTrackedIdentities updates the tracked identity gauge.
func (m *Metrics) SetTrackedIdentities(limiter string, n int) {
	if m == nil {
		return
	}
	m.trackedIdentities.WithLabelValues(limiter).Set(float64(n))
}

// Forget drops every series for limiter. Called when a reload removes it.
func (m *Metrics) Forget(limiter string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"limiter": limiter}
	m.decisions.DeletePartialMatch(labels)
	m.checkDuration.DeletePartialMatch(labels)
	m.trackedIdentities.DeletePartialMatch(labels)
	m.evictions.DeletePartialMatch(labels)
}
