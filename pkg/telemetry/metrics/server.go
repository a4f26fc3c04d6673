package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	JournalWritten = "written"
	JournalDropped = "dropped"
	JournalFailed  = "failed"
)

// ServerMetrics tracks the server's own lifecycle.
//
// Metrics:
//   - turnstile_config_reloads_total: reload attempts by result
//   - turnstile_config_last_reload_timestamp_seconds: time of the last successful reload
//   - turnstile_journal_records_total: journal records by outcome
//   - turnstile_journal_pruned_total: records removed by retention
//   - turnstile_build_info: constant 1, labelled with the version
type ServerMetrics struct {
	reloads        *prometheus.CounterVec
	lastReload     prometheus.Gauge
	journalRecords *prometheus.CounterVec
	journalPruned  prometheus.Counter
	buildInfo      *prometheus.GaugeVec
}

// NewServerMetrics creates server metrics registered on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)

	return &ServerMetrics{
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "config",
				Name:      "reloads_total",
				Help:      "Total number of configuration reload attempts",
			},
			[]string{"result"},
		),
		lastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "config",
				Name:      "last_reload_timestamp_seconds",
				Help:      "Unix time of the last successful configuration reload",
			},
		),
		journalRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "journal",
				Name:      "records_total",
				Help:      "Total number of journal records by outcome",
			},
			[]string{"result"},
		),
		journalPruned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "journal",
				Name:      "pruned_total",
				Help:      "Total number of journal records removed by retention",
			},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version"},
		),
	}
}

// RecordReload records a reload attempt.
func (sm *ServerMetrics) RecordReload(err error, at time.Time) {
	if sm == nil {
		return
	}
	if err != nil {
		sm.reloads.WithLabelValues(ResultFailure).Inc()
		return
	}
	sm.reloads.WithLabelValues(ResultSuccess).Inc()
	sm.lastReload.Set(float64(at.Unix()))
}

// RecordJournal counts journal records with the given outcome.
func (sm *ServerMetrics) RecordJournal(result string) {
	if sm == nil {
		return
	}
	sm.journalRecords.WithLabelValues(result).Inc()
}

// RecordPruned counts records removed by retention.
func (sm *ServerMetrics) RecordPruned(n int64) {
	if sm == nil || n <= 0 {
		return
	}
	sm.journalPruned.Add(float64(n))
}

// SetBuildInfo publishes the running version.
func (sm *ServerMetrics) SetBuildInfo(version string) {
	if sm == nil {
		return
	}
	sm.buildInfo.WithLabelValues(version).Set(1)
}
