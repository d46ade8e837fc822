package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics tracks request volume and latency on an HTTP surface.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
}

// NewHTTPMetrics creates the request counter and latency histogram.
//
// Returns nil if metrics are not enabled (Init not called).
func NewHTTPMetrics() *HTTPMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &HTTPMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_requests_total",
				Help: "Total number of HTTP requests by method, endpoint and status code",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_request_duration_seconds",
				Help:    "HTTP request latency in seconds by method and endpoint",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter, by client",
			},
			[]string{"client_id"},
		),
	}
}

// RecordRequest records one completed request.
func (m *HTTPMetrics) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimited records a request rejected with 429.
func (m *HTTPMetrics) RecordRateLimited(clientID string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(clientID).Inc()
}
