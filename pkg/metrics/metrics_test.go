package metrics

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestDisabledCollectorsAreNoOps(t *testing.T) {
	resetForTesting()

	if IsEnabled() {
		t.Fatal("expected metrics to be disabled before Init")
	}
	if NewHTTPMetrics() != nil {
		t.Error("expected nil HTTP metrics when disabled")
	}
	if NewWorkerMetrics() != nil {
		t.Error("expected nil worker metrics when disabled")
	}

	// Nil receivers must not panic.
	var h *HTTPMetrics
	h.RecordRequest("POST", "/api/v1/messages", 202, time.Millisecond)
	h.RecordRateLimited("client_alpha")

	var w *WorkerMetrics
	w.RecordDelivered("worker-1", time.Second)
	w.RecordFailed("worker-1", "timeout")
	w.ObserveQueueWait("worker-1", time.Minute)
	w.SetQueueSize(10)
	w.WorkerStarted()
	w.WorkerStopped()

	var m *MessageMetrics
	m.RecordRegistered("client_alpha")
	m.RecordDelivered("client_alpha")
	m.RecordFailed("client_alpha", "max_attempts")

	var c *CertificateMetrics
	c.RecordIssued()
	c.RecordRevoked()
}

func TestEnabledCollectors(t *testing.T) {
	resetForTesting()
	Init()

	if !IsEnabled() {
		t.Fatal("expected metrics to be enabled after Init")
	}

	h := NewHTTPMetrics()
	if h == nil {
		t.Fatal("expected HTTP metrics when enabled")
	}
	h.RecordRequest("POST", "/api/v1/messages", 202, 5*time.Millisecond)

	w := NewWorkerMetrics()
	w.RecordDelivered("worker-1", 100*time.Millisecond)
	w.ObserveQueueWait("worker-1", 2*time.Second)
	w.SetQueueSize(3)

	NewMessageMetrics().RecordRegistered("client_alpha")
	NewCertificateMetrics().RecordIssued()

	families, err := GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	want := map[string]bool{
		"courier_requests_total":                  false,
		"courier_queue_size":                      false,
		"courier_messages_registered_total":       false,
		"courier_certificates_issued_total":       false,
		"courier_worker_messages_delivered_total": false,
		"courier_worker_queue_wait_seconds":       false,
	}
	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("series %s not gathered", name)
		}
	}
}

func TestHandler(t *testing.T) {
	resetForTesting()

	t.Run("disabled serves 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		if rec.Code != 404 {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("enabled serves exposition", func(t *testing.T) {
		Init()
		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		if rec.Code != 200 {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Error("expected a non-empty exposition body")
		}
	})
}
