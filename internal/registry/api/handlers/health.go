package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/queue"
	"github.com/courierhq/courier/pkg/store"
)

// HealthHandler serves the health endpoints.
type HealthHandler struct {
	store  store.Store
	queue  queue.Queue // may be nil when the process does not own a queue
	crypto *crypto.Service
}

// NewHealthHandler creates a new HealthHandler. Pass a nil queue for
// processes that only talk to the database.
func NewHealthHandler(s store.Store, q queue.Queue, c *crypto.Service) *HealthHandler {
	return &HealthHandler{store: s, queue: q, crypto: c}
}

// HealthResponse is the body returned by the health endpoints.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// scan checks every dependency this process needs to do useful work.
func (h *HealthHandler) scan(ctx context.Context) (map[string]string, bool) {
	components := make(map[string]string)
	healthy := true

	if err := h.store.Healthcheck(ctx); err != nil {
		components["database"] = err.Error()
		healthy = false
	} else {
		components["database"] = "ok"
	}

	if h.queue != nil {
		if err := h.queue.Healthcheck(ctx); err != nil {
			components["queue"] = err.Error()
			healthy = false
		} else {
			components["queue"] = "ok"
		}
	}

	if h.crypto != nil {
		if !h.crypto.Ready() {
			components["crypto"] = "encryption keys not loaded"
			healthy = false
		} else {
			components["crypto"] = "ok"
		}
	}

	return components, healthy
}

// Health handles GET /health.
// Reports per-component status; any failed component flips the overall
// status to unhealthy with a 503 so load balancers stop routing here.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.report(w, r)
}

// Readiness handles GET /health/ready.
// Same dependency scan as /health, kept as a separate path for
// orchestration probes.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.report(w, r)
}

func (h *HealthHandler) report(w http.ResponseWriter, r *http.Request) {
	components, healthy := h.scan(r.Context())

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: components,
	}
	if !healthy {
		resp.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	WriteJSONOK(w, resp)
}
