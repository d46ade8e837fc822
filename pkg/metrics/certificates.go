package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CertificateMetrics tracks client certificate lifecycle events.
type CertificateMetrics struct {
	issued  prometheus.Counter
	revoked prometheus.Counter
}

// NewCertificateMetrics creates the certificate lifecycle counters.
//
// Returns nil if metrics are not enabled (Init not called).
func NewCertificateMetrics() *CertificateMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &CertificateMetrics{
		issued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "courier_certificates_issued_total",
				Help: "Total number of client certificates registered",
			},
		),
		revoked: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "courier_certificates_revoked_total",
				Help: "Total number of client certificates revoked",
			},
		),
	}
}

func (m *CertificateMetrics) RecordIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *CertificateMetrics) RecordRevoked() {
	if m == nil {
		return
	}
	m.revoked.Inc()
}
