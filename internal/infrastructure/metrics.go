package infrastructure

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the analysis engine and
// the HTTP surface. Each Metrics owns its own registry so tests can
// instantiate it without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	solverMethod     *prometheus.CounterVec

	sensitivityRuns     prometheus.Counter
	sensitivityScens    prometheus.Counter
	sensitivityFailures prometheus.Counter
	sensitivityDuration prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge
}

// NewMetrics creates the metric collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_analyses_total",
			Help: "Total analyses by outcome",
		}, []string{"outcome"}),

		analysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditpulse_analysis_duration_seconds",
			Help:    "End-to-end analysis duration",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),

		solverMethod: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_solver_method_total",
			Help: "Converged solves by solver stage",
		}, []string{"method"}),

		sensitivityRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "creditpulse_sensitivity_runs_total",
			Help: "Total sensitivity batteries run",
		}),

		sensitivityScens: factory.NewCounter(prometheus.CounterOpts{
			Name: "creditpulse_sensitivity_scenarios_total",
			Help: "Total sensitivity scenarios evaluated",
		}),

		sensitivityFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "creditpulse_sensitivity_scenario_failures_total",
			Help: "Sensitivity scenarios that failed to converge",
		}),

		sensitivityDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditpulse_sensitivity_duration_seconds",
			Help:    "Sensitivity battery duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_http_requests_total",
			Help: "HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditpulse_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "creditpulse_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// RecordAnalysis records one analysis outcome. The method label is
// only meaningful for successful solves.
func (m *Metrics) RecordAnalysis(outcome, method string, duration time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if method != "" {
		m.solverMethod.WithLabelValues(method).Inc()
	}
}

// RecordSensitivity records one sensitivity battery run.
func (m *Metrics) RecordSensitivity(scenarios, failed int, duration time.Duration) {
	m.sensitivityRuns.Inc()
	m.sensitivityScens.Add(float64(scenarios))
	m.sensitivityFailures.Add(float64(failed))
	m.sensitivityDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// InFlight returns the in-flight request gauge for middleware use.
func (m *Metrics) InFlight() prometheus.Gauge {
	return m.httpInFlight
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
