package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// ErrorCounter counts integration errors by code and provider
	ErrorCounter *prometheus.CounterVec
	// SyncRuns counts sync runs by provider and outcome
	SyncRuns *prometheus.CounterVec
	// SyncDuration tracks sync run duration by provider
	SyncDuration *prometheus.HistogramVec
	// SyncRecords counts records written or skipped per provider
	SyncRecords *prometheus.CounterVec
	// Callbacks counts callback completions by provider and outcome
	Callbacks *prometheus.CounterVec
	// ConnectedLinks tracks currently connected links per provider
	ConnectedLinks *prometheus.GaugeVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integration_errors_total",
				Help:      "Total number of integration errors",
			},
			[]string{"code", "provider"},
		),
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of sync runs",
			},
			[]string{"provider", "outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Sync run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		SyncRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_records_total",
				Help:      "Records handled by sync runs",
			},
			[]string{"provider", "action"},
		),
		Callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Total number of provider callbacks",
			},
			[]string{"provider", "outcome"},
		),
		ConnectedLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected_links",
				Help:      "Currently connected links per provider",
			},
			[]string{"provider"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.ErrorCounter,
		m.SyncRuns,
		m.SyncDuration,
		m.SyncRecords,
		m.Callbacks,
		m.ConnectedLinks,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordError records an integration error
func (m *Metrics) RecordError(code, provider string) {
	m.ErrorCounter.WithLabelValues(code, provider).Inc()
}

// RecordSyncRun records a completed or failed sync run
func (m *Metrics) RecordSyncRun(provider, outcome string, durationSeconds float64) {
	m.SyncRuns.WithLabelValues(provider, outcome).Inc()
	m.SyncDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordSyncRecords records how many records a run processed and skipped
func (m *Metrics) RecordSyncRecords(provider string, processed, skipped int) {
	if processed > 0 {
		m.SyncRecords.WithLabelValues(provider, "processed").Add(float64(processed))
	}
	if skipped > 0 {
		m.SyncRecords.WithLabelValues(provider, "skipped").Add(float64(skipped))
	}
}

// RecordCallback records a provider callback outcome
func (m *Metrics) RecordCallback(provider, outcome string) {
	m.Callbacks.WithLabelValues(provider, outcome).Inc()
}

// IncConnectedLinks increments the connected-links gauge for a provider
func (m *Metrics) IncConnectedLinks(provider string) {
	m.ConnectedLinks.WithLabelValues(provider).Inc()
}

// DecConnectedLinks decrements the connected-links gauge for a provider
func (m *Metrics) DecConnectedLinks(provider string) {
	m.ConnectedLinks.WithLabelValues(provider).Dec()
}
