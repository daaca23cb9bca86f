package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the roster counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBusy    = "busy"
	OutcomeInvalid = "invalid"
)

// MetricsService encapsulates Prometheus instrumentation for the roster API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
	exports         *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	responseSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Size of HTTP response bodies; exports and certificates dominate the upper buckets",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"method", "path"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_mutations_total",
		Help: "Student store mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_exports_total",
		Help: "Roster exports by format and outcome",
	}, []string{"format", "outcome"})

	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Time spent rendering certificates",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "certificate_queue_pending",
		Help: "Certificate requests queued or rendering",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, responseSize, mutations, exports, renderDuration, queueDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		responseSize:    responseSize,
		mutations:       mutations,
		exports:         exports,
		renderDuration:  renderDuration,
		queueDepth:      queueDepth,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records latency, count and body size for one request.
// route should be a route template, never a raw URL path.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration, bytes int) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
	if bytes < 0 {
		bytes = 0
	}
	m.responseSize.WithLabelValues(method, route).Observe(float64(bytes))
}

// RecordMutation counts a create/update/delete attempt.
func (m *MetricsService) RecordMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// RecordExport counts a roster export.
func (m *MetricsService) RecordExport(format, outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, outcome).Inc()
}

// ObserveRender records how long a certificate render took.
func (m *MetricsService) ObserveRender(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// AddPendingRenders adjusts the pending certificate gauge by delta.
func (m *MetricsService) AddPendingRenders(delta float64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(delta)
}
