package handlers

import (
	"net/http"
	"time"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// AdminHandler serves system-wide statistics, the audit view, and the data
// retention purge. Admin only.
type AdminHandler struct {
	store store.Store
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(s store.Store) *AdminHandler {
	return &AdminHandler{store: s}
}

// StatsResponse is the response body for GET /admin/stats.
type StatsResponse struct {
	Messages  *store.MessageStats `json:"messages"`
	Timestamp time.Time           `json:"timestamp"`
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetMessageStats(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to compute statistics")
		return
	}

	WriteJSONOK(w, StatsResponse{
		Messages:  stats,
		Timestamp: time.Now().UTC(),
	})
}

// Audit handles GET /admin/audit.
// Supports event_type, limit and offset query parameters.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListAudit(r.Context(),
		r.URL.Query().Get("event_type"),
		queryInt(r, "limit", 100),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		InternalServerError(w, "Failed to list audit entries")
		return
	}
	WriteJSONOK(w, entries)
}

// PurgeResponse is the response body for DELETE /admin/messages.
type PurgeResponse struct {
	Deleted int64     `json:"deleted"`
	Before  time.Time `json:"before"`
}

// PurgeMessages handles DELETE /admin/messages?before=RFC3339.
//
// Only delivered messages are purged; queued, processing and failed rows
// are retained regardless of age.
func (h *AdminHandler) PurgeMessages(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("before")
	if raw == "" {
		BadRequest(w, "The before query parameter is required")
		return
	}
	cutoff, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		BadRequest(w, "before must be an RFC 3339 timestamp")
		return
	}

	deleted, err := h.store.PurgeDeliveredBefore(r.Context(), cutoff)
	if err != nil {
		InternalServerError(w, "Failed to purge messages")
		return
	}

	var actorID *uint
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actorID = &claims.UserID
	}
	_ = h.store.AppendAudit(r.Context(), &models.AuditEntry{
		EventType: models.AuditDataRetentionPurge,
		UserID:    actorID,
		SourceIP:  r.RemoteAddr,
		Severity:  string(models.SeverityWarning),
		Details:   "purged " + cutoff.Format(time.RFC3339),
	})

	logger.InfoCtx(r.Context(), "data retention purge completed",
		"deleted", deleted,
		"before", cutoff,
	)

	WriteJSONOK(w, PurgeResponse{Deleted: deleted, Before: cutoff})
}
