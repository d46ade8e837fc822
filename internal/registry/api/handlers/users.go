package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// UserHandler handles operator account management. Reachable by admins and
// user managers; the router enforces the role gate.
type UserHandler struct {
	store store.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s store.Store) *UserHandler {
	return &UserHandler{store: s}
}

// CreateUserRequest is the request body for POST /admin/users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Create handles POST /admin/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Email == "" {
		BadRequest(w, "Email is required")
		return
	}
	if err := crypto.ValidatePassword(req.Password); err != nil {
		BadRequest(w, err.Error())
		return
	}
	role := req.Role
	if role == "" {
		role = string(models.RoleUser)
	}
	if !models.UserRole(role).IsValid() {
		BadRequest(w, "Unknown role")
		return
	}
	// Only admins may mint other admins.
	claims := middleware.GetClaimsFromContext(r.Context())
	if role == string(models.RoleAdmin) && (claims == nil || !claims.IsAdmin()) {
		Forbidden(w, "Only admins can create admin accounts")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		InternalServerError(w, "Failed to process password")
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if req.ClientID != "" {
		user.ClientID = &req.ClientID
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			Conflict(w, "A user with this email already exists")
			return
		}
		InternalServerError(w, "Failed to create user")
		return
	}

	h.auditUserChange(r, models.AuditUserCreated, user.ID)
	WriteJSONCreated(w, userToResponse(user))
}

// List handles GET /admin/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	WriteJSONOK(w, out)
}

// UpdateRoleRequest is the request body for PUT /admin/users/{id}/role.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PUT /admin/users/{id}/role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !models.UserRole(req.Role).IsValid() {
		BadRequest(w, "Unknown role")
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if req.Role == string(models.RoleAdmin) && (claims == nil || !claims.IsAdmin()) {
		Forbidden(w, "Only admins can grant the admin role")
		return
	}

	if err := h.store.UpdateUserRole(r.Context(), userID, models.UserRole(req.Role)); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to update role")
		return
	}

	h.auditUserChange(r, models.AuditUserUpdated, userID)
	WriteJSONOK(w, map[string]string{"role": req.Role})
}

// UpdateUserStatusRequest is the request body for PUT /admin/users/{id}/status.
type UpdateUserStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// UpdateStatus handles PUT /admin/users/{id}/status.
// Operators cannot deactivate their own account.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req UpdateUserStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	err := h.store.UpdateUserStatus(r.Context(), userID, claims.UserID, req.IsActive)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSelfUpdate):
			Forbidden(w, "Cannot change the status of your own account")
		case errors.Is(err, models.ErrUserNotFound):
			NotFound(w, "User not found")
		default:
			InternalServerError(w, "Failed to update status")
		}
		return
	}

	h.auditUserChange(r, models.AuditUserUpdated, userID)
	WriteJSONOK(w, map[string]bool{"is_active": req.IsActive})
}

// SetPasswordRequest is the request body for POST /admin/users/{id}/password.
type SetPasswordRequest struct {
	Password string `json:"password"`
}

// SetPassword handles POST /admin/users/{id}/password.
// Administrative password override; the audit trail records who did it.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req SetPasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := crypto.ValidatePassword(req.Password); err != nil {
		BadRequest(w, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		InternalServerError(w, "Failed to process password")
		return
	}

	if err := h.store.UpdatePassword(r.Context(), userID, hash); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to update password")
		return
	}

	h.auditUserChange(r, models.AuditPasswordChanged, userID)
	WriteNoContent(w)
}

func (h *UserHandler) auditUserChange(r *http.Request, eventType string, subjectID uint) {
	var actorID *uint
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actorID = &claims.UserID
	}
	entry := &models.AuditEntry{
		EventType: eventType,
		UserID:    actorID,
		SourceIP:  r.RemoteAddr,
		Details:   "subject user " + strconv.FormatUint(uint64(subjectID), 10),
	}
	if err := h.store.AppendAudit(r.Context(), entry); err != nil {
		logger.WarnCtx(r.Context(), "failed to append audit entry",
			logger.EventType(eventType), logger.Err(err))
	}
}

// pathUserID parses the {id} route parameter. Writes a 400 and returns
// false when it is not a positive integer.
func pathUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		BadRequest(w, "Invalid user ID")
		return 0, false
	}
	return uint(id), true
}
