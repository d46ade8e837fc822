package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// InternalHandler serves the service-to-service surface used by the gateway
// and the worker pool. It is never exposed on the public listener.
type InternalHandler struct {
	store          store.Store
	crypto         *crypto.Service
	messageMetrics *metrics.MessageMetrics
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(s store.Store, cryptoSvc *crypto.Service, mm *metrics.MessageMetrics) *InternalHandler {
	return &InternalHandler{
		store:          s,
		crypto:         cryptoSvc,
		messageMetrics: mm,
	}
}

// RegisterMessageRequest is the request body for POST /internal/messages.
// The gateway sends the sender number and body in the clear over the
// internal link; hashing and encryption happen here so plaintext never
// reaches the database.
type RegisterMessageRequest struct {
	MessageID    string `json:"message_id"`
	ClientID     string `json:"client_id"`
	SenderNumber string `json:"sender_number"`
	MessageBody  string `json:"message_body"`
	Domain       string `json:"domain,omitempty"`
}

// RegisterMessageResponse is the response body for POST /internal/messages.
type RegisterMessageResponse struct {
	MessageID  string    `json:"message_id"`
	Status     string    `json:"status"`
	KeyVersion int       `json:"key_version"`
	QueuedAt   time.Time `json:"queued_at"`
}

// RegisterMessage handles POST /internal/messages.
//
// The registry row is the system of record: the gateway only enqueues after
// this call succeeds, so a queue record without a row can never exist.
// Re-registering an existing message_id returns 409 without side effects.
func (h *InternalHandler) RegisterMessage(w http.ResponseWriter, r *http.Request) {
	var req RegisterMessageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	} else if _, err := uuid.Parse(req.MessageID); err != nil {
		BadRequest(w, "message_id must be a UUID")
		return
	}
	if req.ClientID == "" || req.SenderNumber == "" || req.MessageBody == "" {
		BadRequest(w, "client_id, sender_number and message_body are required")
		return
	}

	senderHash, err := h.crypto.HashPhone(req.SenderNumber)
	if err != nil {
		InternalServerError(w, "Crypto service unavailable")
		return
	}
	ciphertext, keyVersion, err := h.crypto.Encrypt(req.MessageBody)
	if err != nil {
		InternalServerError(w, "Crypto service unavailable")
		return
	}

	now := time.Now()
	msg := &models.Message{
		MessageID:     req.MessageID,
		ClientID:      req.ClientID,
		SenderHash:    senderHash,
		EncryptedBody: []byte(ciphertext),
		KeyVersion:    keyVersion,
		Domain:        req.Domain,
		QueuedAt:      now,
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		if errors.Is(err, models.ErrAlreadyRegistered) {
			Conflict(w, "Message already registered")
			return
		}
		InternalServerError(w, "Failed to register message")
		return
	}

	_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
		EventType: models.AuditMessageRegistered,
		ClientID:  &req.ClientID,
		SourceIP:  r.RemoteAddr,
	})
	h.messageMetrics.RecordRegistered(req.ClientID)

	logger.InfoCtx(r.Context(), "message registered",
		logger.MessageID(msg.MessageID),
		logger.ClientID(msg.ClientID),
		logger.Phone(req.SenderNumber),
		logger.KeyVersion(keyVersion),
	)

	WriteJSONCreated(w, RegisterMessageResponse{
		MessageID:  msg.MessageID,
		Status:     msg.Status,
		KeyVersion: keyVersion,
		QueuedAt:   msg.QueuedAt,
	})
}

// DeliverRequest is the request body for POST /internal/messages/{id}/deliver.
type DeliverRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
}

// DeliverResponse is the response body for POST /internal/messages/{id}/deliver.
type DeliverResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Deliver handles POST /internal/messages/{id}/deliver.
// Marks a message delivered. Delivery is terminal: a second confirmation
// for the same message returns 409.
func (h *InternalHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	var req DeliverRequest
	if r.ContentLength > 0 && !decodeJSONBody(w, r, &req) {
		return
	}

	deliveredAt, err := h.store.DeliverMessage(r.Context(), messageID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMessageNotFound):
			NotFound(w, "Message not found")
		case errors.Is(err, models.ErrInvalidTransition):
			Conflict(w, "Message is already in a terminal state")
		default:
			InternalServerError(w, "Failed to confirm delivery")
		}
		return
	}

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err == nil {
		_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
			EventType: models.AuditMessageDelivered,
			ClientID:  &msg.ClientID,
			SourceIP:  r.RemoteAddr,
		})
		h.messageMetrics.RecordDelivered(msg.ClientID)
	}

	logger.InfoCtx(r.Context(), "delivery confirmed",
		logger.MessageID(messageID),
		logger.WorkerID(req.WorkerID),
	)

	WriteJSONOK(w, DeliverResponse{
		MessageID:   messageID,
		Status:      string(models.MessageDelivered),
		DeliveredAt: deliveredAt,
	})
}

// UpdateStatusRequest is the request body for PATCH /internal/messages/{id}/status.
type UpdateStatusRequest struct {
	Status       string `json:"status"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `json:"last_error,omitempty"`
}

// UpdateStatus handles PATCH /internal/messages/{id}/status.
// Used by workers to record retries and terminal failures.
func (h *InternalHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	status := models.MessageStatus(req.Status)
	if !status.IsValid() {
		BadRequest(w, "Unknown message status")
		return
	}

	err := h.store.UpdateMessageStatus(r.Context(), messageID, status, req.AttemptCount, req.LastError)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMessageNotFound):
			NotFound(w, "Message not found")
		case errors.Is(err, models.ErrInvalidTransition):
			Conflict(w, "Invalid status transition")
		case errors.Is(err, models.ErrAttemptRegression):
			Conflict(w, "Attempt count cannot decrease")
		default:
			InternalServerError(w, "Failed to update status")
		}
		return
	}

	if status == models.MessageFailed {
		if msg, err := h.store.GetMessage(r.Context(), messageID); err == nil {
			_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
				EventType: models.AuditMessageFailed,
				ClientID:  &msg.ClientID,
				SourceIP:  r.RemoteAddr,
				Severity:  string(models.SeverityError),
				Details:   req.LastError,
			})
			h.messageMetrics.RecordFailed(msg.ClientID, "max_attempts")
		}
	}

	WriteJSONOK(w, map[string]string{
		"message_id": messageID,
		"status":     req.Status,
	})
}

// GetStatus handles GET /internal/messages/{id}.
// Returns the lifecycle view of one message (no body).
func (h *InternalHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			NotFound(w, "Message not found")
			return
		}
		InternalServerError(w, "Failed to fetch message")
		return
	}

	WriteJSONOK(w, messageToResponse(msg))
}

// ValidateClientRequest is the request body for POST /internal/clients/validate.
type ValidateClientRequest struct {
	ClientID    string `json:"client_id"`
	Fingerprint string `json:"fingerprint,omitempty"`
	SourceIP    string `json:"source_ip,omitempty"`
	// HeaderIdentity marks requests where the gateway accepted the
	// X-Client-ID header instead of a certificate. Audited regardless of
	// the verdict.
	HeaderIdentity bool `json:"header_identity,omitempty"`
}

// ValidateClientResponse is the response body for POST /internal/clients/validate.
type ValidateClientResponse struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status,omitempty"`
	Domain string `json:"domain,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ValidateClient handles POST /internal/clients/validate.
//
// The gateway calls this on every ingress request so that a revocation
// recorded here takes effect before the client's TLS certificate expires.
// Rejections are written to the audit ledger with WARNING severity.
func (h *InternalHandler) ValidateClient(w http.ResponseWriter, r *http.Request) {
	var req ValidateClientRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		BadRequest(w, "client_id is required")
		return
	}

	if req.HeaderIdentity {
		sourceIP := req.SourceIP
		if sourceIP == "" {
			sourceIP = r.RemoteAddr
		}
		_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
			EventType: models.AuditHeaderIdentityUsed,
			ClientID:  &req.ClientID,
			SourceIP:  sourceIP,
			Severity:  string(models.SeverityWarning),
		})
	}

	client, err := h.store.GetClient(r.Context(), req.ClientID)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			h.auditRejection(r, req, "unknown client")
			WriteJSONOK(w, ValidateClientResponse{Valid: false, Reason: "unknown client"})
			return
		}
		InternalServerError(w, "Failed to validate client")
		return
	}

	if req.Fingerprint != "" && req.Fingerprint != client.CertFingerprint {
		h.auditRejection(r, req, "fingerprint mismatch")
		WriteJSONOK(w, ValidateClientResponse{Valid: false, Reason: "fingerprint mismatch"})
		return
	}

	now := time.Now()
	status := client.EffectiveStatus(now)
	if status != models.ClientActive {
		h.auditRejection(r, req, "client "+string(status))
		WriteJSONOK(w, ValidateClientResponse{
			Valid:  false,
			Status: string(status),
			Reason: "client " + string(status),
		})
		return
	}

	WriteJSONOK(w, ValidateClientResponse{
		Valid:  true,
		Status: string(status),
		Domain: client.Domain,
	})
}

func (h *InternalHandler) auditRejection(r *http.Request, req ValidateClientRequest, reason string) {
	sourceIP := req.SourceIP
	if sourceIP == "" {
		sourceIP = r.RemoteAddr
	}
	_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
		EventType: models.AuditClientRejected,
		ClientID:  &req.ClientID,
		SourceIP:  sourceIP,
		Severity:  string(models.SeverityWarning),
		Details:   reason,
	})
	logger.WarnCtx(r.Context(), "client validation rejected",
		logger.ClientID(req.ClientID),
		logger.Reason(reason),
	)
}
