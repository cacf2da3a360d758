package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the API client and the mock server
type Metrics struct {
	// Client request metrics
	Requests        *prometheus.CounterVec
	Successes       *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// HTTP server metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Client request metrics
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regolo_requests_total",
			Help: "Total number of API requests sent",
		}, []string{"flow"}),
		Successes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regolo_request_successes_total",
			Help: "Total number of API requests that returned a JSON response",
		}, []string{"flow"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regolo_request_failures_total",
			Help: "Total number of failed API requests by error kind",
		}, []string{"flow", "error_type"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regolo_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"flow"}),
		RequestSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regolo_request_size_bytes",
			Help:    "Size of API request bodies",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B to ~64MB
		}, []string{"flow"}),
		ResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regolo_response_size_bytes",
			Help:    "Size of API response bodies",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"flow"}),

		// HTTP server metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regolo_mock_http_requests_total",
			Help: "Total number of HTTP requests served",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regolo_mock_http_request_duration_seconds",
			Help:    "Duration of served HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regolo_mock_http_errors_total",
			Help: "Total number of HTTP error responses served",
		}, []string{"method", "endpoint", "error_type"}),

		gatherer: reg,
	}
}

// RecordRequest counts an outgoing request. sizeBytes is ignored when unknown (negative).
func (m *Metrics) RecordRequest(flow string, sizeBytes int64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(flow).Inc()
	if sizeBytes >= 0 {
		m.RequestSize.WithLabelValues(flow).Observe(float64(sizeBytes))
	}
}

// RecordSuccess records a request that returned a JSON response
func (m *Metrics) RecordSuccess(flow string, durationSeconds float64, responseBytes int) {
	if m == nil {
		return
	}
	m.Successes.WithLabelValues(flow).Inc()
	m.RequestDuration.WithLabelValues(flow).Observe(durationSeconds)
	m.ResponseSize.WithLabelValues(flow).Observe(float64(responseBytes))
}

// RecordFailure records a failed request
func (m *Metrics) RecordFailure(flow, errorType string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(flow, errorType).Inc()
	m.RequestDuration.WithLabelValues(flow).Observe(durationSeconds)
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records a served HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}
