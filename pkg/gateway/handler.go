package gateway

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/internal/tlsutil"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/queue"
)

// headerClientID is the development-only identity header. Honored only
// when Config.AllowHeaderIdentity is set.
const headerClientID = "X-Client-ID"

// Handler serves the ingress submission endpoint.
type Handler struct {
	config      *Config
	registry    *RegistryClient
	queue       queue.Queue
	limiter     *RateLimiter
	validate    *validator.Validate
	httpMetrics *metrics.HTTPMetrics
}

// NewHandler creates the ingress handler.
func NewHandler(cfg *Config, registry *RegistryClient, q queue.Queue) *Handler {
	return &Handler{
		config:      cfg,
		registry:    registry,
		queue:       q,
		limiter:     NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests),
		validate:    newValidator(),
		httpMetrics: metrics.NewHTTPMetrics(),
	}
}

// identity is the resolved caller identity for one request.
type identity struct {
	ClientID       string
	Fingerprint    string
	HeaderIdentity bool
}

// resolveIdentity extracts the client identity from the TLS handshake, or
// from the X-Client-ID header when the development bypass is enabled.
func (h *Handler) resolveIdentity(r *http.Request) (*identity, bool) {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		fp, cn, err := tlsutil.PeerIdentity(r.TLS)
		if err == nil && cn != "" {
			return &identity{ClientID: cn, Fingerprint: fp}, true
		}
	}

	if h.config.AllowHeaderIdentity {
		if clientID := r.Header.Get(headerClientID); clientID != "" {
			logger.WarnCtx(r.Context(), "header identity accepted without certificate",
				logger.ClientID(clientID),
				logger.ClientIP(r.RemoteAddr),
			)
			return &identity{ClientID: clientID, HeaderIdentity: true}, true
		}
	}

	return nil, false
}

// Submit handles POST /api/v1/messages.
//
// Order of checks: identity, rate limit, payload validation, client
// standing, then register-before-enqueue. The registry row is created
// first so a queue entry can never reference a message the registry does
// not know about; if the enqueue fails afterwards the row stays queued
// and is picked up by reconciliation.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusAccepted
	defer func() {
		h.httpMetrics.RecordRequest(r.Method, "/api/v1/messages", status, time.Since(start))
	}()

	ident, ok := h.resolveIdentity(r)
	if !ok {
		status = http.StatusUnauthorized
		writeError(w, status, "Unauthorized", "Client certificate required")
		return
	}

	if !h.limiter.Allow(ident.ClientID) {
		status = http.StatusTooManyRequests
		h.httpMetrics.RecordRateLimited(ident.ClientID)
		logger.WarnCtx(r.Context(), "rate limit exceeded",
			logger.ClientID(ident.ClientID),
		)
		writeError(w, status, "RateLimitExceeded", "Too many requests, retry later")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "InvalidRequest", "Request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "ValidationFailed", validationMessage(err))
		return
	}

	sourceIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	verdict, err := h.registry.ValidateClient(r.Context(), ident.ClientID, ident.Fingerprint, sourceIP, ident.HeaderIdentity)
	if err != nil {
		status = http.StatusServiceUnavailable
		writeError(w, status, "RegistryUnavailable", "Message registry is unavailable")
		return
	}
	if !verdict.Valid {
		status = http.StatusUnauthorized
		logger.WarnCtx(r.Context(), "client rejected",
			logger.ClientID(ident.ClientID),
			logger.Reason(verdict.Reason),
		)
		writeError(w, status, "ClientRejected", "Client is not authorized to submit messages")
		return
	}

	domain := ""
	if req.Metadata != nil {
		domain = req.Metadata.Domain
	}
	if domain == "" {
		domain = verdict.Domain
	}

	messageID := uuid.NewString()
	queuedAt := time.Now().UTC()

	if err := h.registry.RegisterMessage(r.Context(), messageID, ident.ClientID, req.SenderNumber, req.MessageBody, domain); err != nil {
		if errors.Is(err, ErrDuplicateMessage) {
			status = http.StatusConflict
			writeError(w, status, "DuplicateMessage", "Message is already registered")
			return
		}
		status = http.StatusServiceUnavailable
		writeError(w, status, "RegistryUnavailable", "Message registry is unavailable")
		return
	}

	item := &queue.WorkItem{
		MessageID:    messageID,
		ClientID:     ident.ClientID,
		SenderNumber: req.SenderNumber,
		MessageBody:  req.MessageBody,
		Domain:       domain,
		QueuedAt:     queuedAt,
	}
	if err := h.queue.Push(r.Context(), item); err != nil {
		// The registry row stays queued; reconciliation re-enqueues it.
		status = http.StatusServiceUnavailable
		logger.ErrorCtx(r.Context(), "enqueue failed after registration",
			logger.MessageID(messageID),
			logger.Err(err),
		)
		writeError(w, status, "QueueUnavailable", "Message queue is unavailable")
		return
	}

	position, err := h.queue.Length(r.Context())
	if err != nil {
		// Position is advisory; the submission already succeeded.
		position = 0
	}

	logger.InfoCtx(r.Context(), "message accepted",
		logger.MessageID(messageID),
		logger.ClientID(ident.ClientID),
		logger.Phone(req.SenderNumber),
		logger.QueueSize(position),
	)

	writeJSON(w, http.StatusAccepted, AcceptResponse{
		MessageID: messageID,
		Status:    "queued",
		ClientID:  ident.ClientID,
		QueuedAt:  queuedAt,
		Position:  position,
	})
}

// Health handles GET /health. Reports queue reachability; the registry is
// checked per request, so it is not probed here.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	if err := h.queue.Healthcheck(r.Context()); err != nil {
		components["queue"] = err.Error()
		healthy = false
	} else {
		components["queue"] = "ok"
	}

	resp := map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"components": components,
	}
	if !healthy {
		resp["status"] = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
