package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// MessageHandler serves the portal's message views.
type MessageHandler struct {
	store  store.Store
	crypto *crypto.Service
}

// NewMessageHandler creates a new MessageHandler. The crypto service is
// only exercised by the admin-only body endpoint.
func NewMessageHandler(s store.Store, cryptoSvc *crypto.Service) *MessageHandler {
	return &MessageHandler{store: s, crypto: cryptoSvc}
}

// MessageResponse is the portal representation of a message. The body is
// never included; it stays encrypted at rest and is only reachable through
// the admin body endpoint.
type MessageResponse struct {
	MessageID    string     `json:"message_id"`
	ClientID     string     `json:"client_id"`
	SenderHash   string     `json:"sender_hash"`
	Status       string     `json:"status"`
	Domain       string     `json:"domain,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	QueuedAt     time.Time  `json:"queued_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

// ListResponse is the paginated envelope for GET /portal/messages.
type ListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List handles GET /portal/messages.
//
// Visibility is scoped by role: admins see all traffic, a USER bound to a
// client sees that client's messages, and everyone else sees nothing.
// USER_MANAGER exists to manage accounts, not to read traffic.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	filter := store.MessageFilter{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
		Status:   models.MessageStatus(r.URL.Query().Get("status")),
	}

	switch {
	case claims.IsAdmin():
		// Admins may additionally narrow to one client.
		filter.ClientID = r.URL.Query().Get("client_id")
	case claims.Role == string(models.RoleUser) && claims.ClientID != "":
		filter.ClientID = claims.ClientID
	default:
		WriteJSONOK(w, ListResponse{
			Messages: []MessageResponse{},
			Page:     filter.Page,
			PageSize: filter.PageSize,
		})
		return
	}

	msgs, total, err := h.store.ListMessages(r.Context(), filter)
	if err != nil {
		InternalServerError(w, "Failed to list messages")
		return
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	WriteJSONOK(w, ListResponse{
		Messages: out,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// BodyResponse is the response for the admin-only body endpoint.
type BodyResponse struct {
	MessageID  string `json:"message_id"`
	Body       string `json:"body"`
	KeyVersion int    `json:"key_version"`
}

// GetBody handles GET /portal/messages/{id}/body.
//
// Decryption of a stored body is an admin-only operation; every access is
// written to the audit ledger with the acting operator.
func (h *MessageHandler) GetBody(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}
	if !claims.IsAdmin() {
		Forbidden(w, "Admin access required")
		return
	}

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

	body, err := h.crypto.Decrypt(string(msg.EncryptedBody), msg.KeyVersion)
	if err != nil {
		InternalServerError(w, "Failed to decrypt message body")
		return
	}

	_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
		EventType: models.AuditMessageBodyAccess,
		UserID:    &claims.UserID,
		ClientID:  &msg.ClientID,
		SourceIP:  r.RemoteAddr,
		Severity:  string(models.SeverityWarning),
		Details:   "message " + msg.MessageID,
	})

	WriteJSONOK(w, BodyResponse{
		MessageID:  msg.MessageID,
		Body:       body,
		KeyVersion: msg.KeyVersion,
	})
}

func messageToResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		MessageID:    m.MessageID,
		ClientID:     m.ClientID,
		SenderHash:   m.SenderHash,
		Status:       m.Status,
		Domain:       m.Domain,
		AttemptCount: m.AttemptCount,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		QueuedAt:     m.QueuedAt,
		DeliveredAt:  m.DeliveredAt,
	}
}
