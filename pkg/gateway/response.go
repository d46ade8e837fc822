package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the ingress error shape. This wire contract predates the
// registry's problem+json surface and is kept for client compatibility.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AcceptResponse is the 202 body returned for an accepted message.
type AcceptResponse struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	QueuedAt  time.Time `json:"queued_at"`
	Position  int64     `json:"position"`
}

// writeError writes the legacy ingress error shape.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
