package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MessageMetrics tracks message lifecycle counts on the registry side.
type MessageMetrics struct {
	registered *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	failed     *prometheus.CounterVec
}

// NewMessageMetrics creates the per-client message lifecycle counters.
//
// Returns nil if metrics are not enabled (Init not called).
func NewMessageMetrics() *MessageMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &MessageMetrics{
		registered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_messages_registered_total",
				Help: "Total number of messages registered, by client",
			},
			[]string{"client_id"},
		),
		delivered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_messages_delivered_total",
				Help: "Total number of messages confirmed delivered, by client",
			},
			[]string{"client_id"},
		),
		failed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_messages_failed_total",
				Help: "Total number of messages marked failed, by client and reason",
			},
			[]string{"client_id", "reason"},
		),
	}
}

func (m *MessageMetrics) RecordRegistered(clientID string) {
	if m == nil {
		return
	}
	m.registered.WithLabelValues(clientID).Inc()
}

func (m *MessageMetrics) RecordDelivered(clientID string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(clientID).Inc()
}

func (m *MessageMetrics) RecordFailed(clientID, reason string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(clientID, reason).Inc()
}
