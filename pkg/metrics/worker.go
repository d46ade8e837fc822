package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics tracks the delivery worker pool and the queue it drains.
type WorkerMetrics struct {
	delivered        *prometheus.CounterVec
	failed           *prometheus.CounterVec
	retries          *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	queueWait        *prometheus.HistogramVec
	queueSize        prometheus.Gauge
	activeWorkers    prometheus.Gauge
}

// NewWorkerMetrics creates the worker pool collectors.
//
// Returns nil if metrics are not enabled (Init not called).
func NewWorkerMetrics() *WorkerMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &WorkerMetrics{
		delivered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_worker_messages_delivered_total",
				Help: "Total number of messages delivered, by worker",
			},
			[]string{"worker_id"},
		),
		failed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_worker_messages_failed_total",
				Help: "Total number of delivery attempts that failed, by worker and reason",
			},
			[]string{"worker_id", "reason"},
		),
		retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_worker_retries_total",
				Help: "Total number of messages pushed back for retry, by worker",
			},
			[]string{"worker_id"},
		),
		deliveryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_worker_delivery_duration_seconds",
				Help:    "Time spent delivering one message, by worker",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"worker_id"},
		),
		queueWait: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_worker_queue_wait_seconds",
				Help:    "Time a message spent in the queue before a worker picked it up",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
			},
			[]string{"worker_id"},
		),
		queueSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "courier_queue_size",
				Help: "Current depth of the message work queue",
			},
		),
		activeWorkers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "courier_active_workers",
				Help: "Number of worker goroutines currently running",
			},
		),
	}
}

func (m *WorkerMetrics) RecordDelivered(workerID string, duration time.Duration) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(workerID).Inc()
	m.deliveryDuration.WithLabelValues(workerID).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordFailed(workerID, reason string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(workerID, reason).Inc()
}

func (m *WorkerMetrics) ObserveQueueWait(workerID string, wait time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.WithLabelValues(workerID).Observe(wait.Seconds())
}

func (m *WorkerMetrics) RecordRetry(workerID string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(workerID).Inc()
}

func (m *WorkerMetrics) SetQueueSize(depth int64) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(depth))
}

func (m *WorkerMetrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

func (m *WorkerMetrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}
