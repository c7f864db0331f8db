package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "greylit"

// Registry bundles the processing pipeline's Prometheus collectors.
type Registry struct {
	registry *prometheus.Registry

	runsStarted    prometheus.Counter
	runsFinished   *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	itemsProcessed prometheus.Counter
	itemFailures   prometheus.Counter
	duplicates     prometheus.Counter
	activeRuns     prometheus.Gauge
}

// New builds a registry with all pipeline collectors registered, plus the
// standard Go and process collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		registry: reg,
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Processing runs accepted for execution.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Processing runs reaching a terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of processing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Raw results processed successfully.",
		}),
		itemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Raw results that failed processing.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_flagged_total",
			Help:      "Processed results flagged as duplicates.",
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsStarted,
		m.runsFinished,
		m.runDuration,
		m.itemsProcessed,
		m.itemFailures,
		m.duplicates,
		m.activeRuns,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted records an accepted run and bumps the active gauge.
func (m *Registry) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RunFinished records a terminal run with its duration.
func (m *Registry) RunFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(seconds)
	m.activeRuns.Dec()
}

// ItemProcessed records one successfully processed raw result.
func (m *Registry) ItemProcessed() {
	if m == nil {
		return
	}
	m.itemsProcessed.Inc()
}

// ItemFailed records one raw result that failed processing.
func (m *Registry) ItemFailed() {
	if m == nil {
		return
	}
	m.itemFailures.Inc()
}

// DuplicatesFlagged records duplicates found by a detection pass.
func (m *Registry) DuplicatesFlagged(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.duplicates.Add(float64(count))
}
