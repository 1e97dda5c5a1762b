// Package metrics defines the Prometheus collectors of the ingestion service
// and exposes an HTTP handler for scraping. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	JobsTotal           *prometheus.CounterVec
	JobsInFlight        prometheus.Gauge
	StepDuration        *prometheus.HistogramVec
	StepFailuresTotal   *prometheus.CounterVec
	RegistrationsTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	QueueRequeuedTotal  prometheus.Counter
	StaleJobsFailed     prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_jobs_total",
				Help: "Finished ingestion jobs by terminal status and error kind.",
			},
			[]string{"status", "error_kind"},
		),
		JobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_jobs_in_flight",
				Help: "Ingestion jobs currently executing in this process.",
			},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_step_duration_seconds",
				Help:    "Pipeline step latency in seconds by step type and outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step", "status"},
		),
		StepFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_step_failures_total",
				Help: "Pipeline step failures by step type and error kind.",
			},
			[]string{"step", "error_kind"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_registrations_total",
				Help: "Source registrations by outcome.",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		QueueRequeuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "queue_requeued_total",
				Help: "Job ids moved from processing lists back to the queue.",
			},
		),
		StaleJobsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_stale_jobs_failed_total",
				Help: "Jobs failed by the reaper after being stuck in processing.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.JobsTotal,
		m.JobsInFlight,
		m.StepDuration,
		m.StepFailuresTotal,
		m.RegistrationsTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.QueueRequeuedTotal,
		m.StaleJobsFailed,
	)
	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveStep(step, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step, status).Observe(d.Seconds())
}

func (m *Metrics) StepFailed(step, kind string) {
	if m == nil {
		return
	}
	m.StepFailuresTotal.WithLabelValues(step, kind).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

// JobFinished records a terminal job. kind is empty for completed jobs.
func (m *Metrics) JobFinished(status, kind string) {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
	m.JobsTotal.WithLabelValues(status, kind).Inc()
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSearch(cacheStatus string, d time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) Requeued(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.QueueRequeuedTotal.Add(float64(n))
}

func (m *Metrics) StaleFailed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleJobsFailed.Add(float64(n))
}
