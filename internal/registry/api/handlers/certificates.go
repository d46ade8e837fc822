package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// CertificateHandler handles client certificate lifecycle management.
// Admin only.
type CertificateHandler struct {
	store       store.Store
	certMetrics *metrics.CertificateMetrics
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(s store.Store, cm *metrics.CertificateMetrics) *CertificateHandler {
	return &CertificateHandler{store: s, certMetrics: cm}
}

// RegisterClientRequest is the request body for POST /admin/certificates.
type RegisterClientRequest struct {
	ClientID        string    `json:"client_id"`
	CertFingerprint string    `json:"cert_fingerprint"`
	Domain          string    `json:"domain,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// ClientResponse is the API representation of a client identity. Status is
// computed, so a certificate past its expiry reads "expired" even though
// the stored column still says "active".
type ClientResponse struct {
	ClientID         string     `json:"client_id"`
	CertFingerprint  string     `json:"cert_fingerprint"`
	Domain           string     `json:"domain,omitempty"`
	Status           string     `json:"status"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`
}

// Register handles POST /admin/certificates.
func (h *CertificateHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.ClientID == "" || req.CertFingerprint == "" {
		BadRequest(w, "client_id and cert_fingerprint are required")
		return
	}
	if req.ExpiresAt.IsZero() || !req.ExpiresAt.After(time.Now()) {
		BadRequest(w, "expires_at must be in the future")
		return
	}

	client := &models.Client{
		ClientID:        req.ClientID,
		CertFingerprint: req.CertFingerprint,
		Domain:          req.Domain,
		ExpiresAt:       req.ExpiresAt,
	}
	if err := h.store.RegisterClient(r.Context(), client); err != nil {
		if errors.Is(err, models.ErrClientExists) {
			Conflict(w, "Client or fingerprint already registered")
			return
		}
		InternalServerError(w, "Failed to register client")
		return
	}

	h.auditCertChange(r, models.AuditClientRegistered, req.ClientID, "")
	h.certMetrics.RecordIssued()

	logger.InfoCtx(r.Context(), "client certificate registered",
		logger.ClientID(req.ClientID),
		logger.Fingerprint(req.CertFingerprint),
	)

	WriteJSONCreated(w, clientToResponse(client, time.Now()))
}

// List handles GET /admin/certificates.
func (h *CertificateHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.ListClients(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list clients")
		return
	}

	now := time.Now()
	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientToResponse(c, now))
	}
	WriteJSONOK(w, out)
}

// Expiring handles GET /admin/certificates/expiring.
// Lists active certificates expiring within the window (default 30 days).
func (h *CertificateHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	withinDays := queryInt(r, "within_days", 30)
	if withinDays <= 0 {
		BadRequest(w, "within_days must be positive")
		return
	}

	clients, err := h.store.ListExpiringClients(r.Context(), withinDays)
	if err != nil {
		InternalServerError(w, "Failed to list expiring clients")
		return
	}

	now := time.Now()
	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientToResponse(c, now))
	}
	WriteJSONOK(w, out)
}

// RevokeRequest is the request body for POST /admin/certificates/{clientID}/revoke.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// Revoke handles POST /admin/certificates/{clientID}/revoke.
// Revocation is terminal; revoking twice returns 409.
func (h *CertificateHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req RevokeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		BadRequest(w, "A revocation reason is required")
		return
	}

	client, err := h.store.RevokeClient(r.Context(), clientID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrClientNotFound):
			NotFound(w, "Client not found")
		case errors.Is(err, models.ErrAlreadyRevoked):
			Conflict(w, "Client is already revoked")
		default:
			InternalServerError(w, "Failed to revoke client")
		}
		return
	}

	h.auditCertChange(r, models.AuditClientRevoked, clientID, req.Reason)
	h.certMetrics.RecordRevoked()

	logger.WarnCtx(r.Context(), "client certificate revoked",
		logger.ClientID(clientID),
		logger.Reason(req.Reason),
	)

	WriteJSONOK(w, clientToResponse(client, time.Now()))
}

func (h *CertificateHandler) auditCertChange(r *http.Request, eventType, clientID, details string) {
	var actorID *uint
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actorID = &claims.UserID
	}
	severity := string(models.SeverityInfo)
	if eventType == models.AuditClientRevoked {
		severity = string(models.SeverityWarning)
	}
	entry := &models.AuditEntry{
		EventType: eventType,
		UserID:    actorID,
		ClientID:  &clientID,
		SourceIP:  r.RemoteAddr,
		Severity:  severity,
		Details:   details,
	}
	if err := h.store.AppendAudit(r.Context(), entry); err != nil {
		logger.WarnCtx(r.Context(), "failed to append audit entry",
			logger.EventType(eventType), logger.Err(err))
	}
}

func clientToResponse(c *models.Client, now time.Time) ClientResponse {
	return ClientResponse{
		ClientID:         c.ClientID,
		CertFingerprint:  c.CertFingerprint,
		Domain:           c.Domain,
		Status:           string(c.EffectiveStatus(now)),
		IssuedAt:         c.IssuedAt,
		ExpiresAt:        c.ExpiresAt,
		RevokedAt:        c.RevokedAt,
		RevocationReason: c.RevocationReason,
	}
}
