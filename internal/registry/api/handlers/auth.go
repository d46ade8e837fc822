package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/internal/registry/api/auth"
	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

// AuthHandler handles the portal authentication endpoints.
type AuthHandler struct {
	store      store.Store
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s store.Store, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		store:      s,
		jwtService: jwtService,
	}
}

// LoginRequest is the request body for POST /portal/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /portal/auth/login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a sanitized operator representation for API responses.
type UserResponse struct {
	ID        uint       `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ClientID  string     `json:"client_id,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// RefreshRequest is the request body for POST /portal/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /portal/auth/login.
// Authenticates operator credentials and returns a JWT token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		BadRequest(w, "Email and password are required")
		return
	}

	user, err := h.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrAuthFailed) {
			h.auditLogin(r, models.AuditLoginFailed, nil, string(models.SeverityWarning))
			Unauthorized(w, "Invalid email or password")
			return
		}
		InternalServerError(w, "Authentication failed")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	if err := h.store.UpdateLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		logger.WarnCtx(r.Context(), "failed to update last login time",
			logger.Email(user.Email), logger.Err(err))
	}
	h.auditLogin(r, models.AuditLoginSuccess, &user.ID, string(models.SeverityInfo))

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User:         userToResponse(user),
	})
}

// Refresh handles POST /portal/auth/refresh.
// Returns a new token pair using a valid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	// Fetch fresh operator data: role or client binding may have changed
	// since the refresh token was minted.
	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}

	if !user.IsActive {
		Forbidden(w, "User account is disabled")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User:         userToResponse(user),
	})
}

// Profile handles GET /portal/profile.
// Returns the current authenticated operator's information.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}

	WriteJSONOK(w, userToResponse(user))
}

// ForgotPasswordRequest is the request body for POST /portal/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /portal/auth/forgot-password.
//
// The response is identical whether or not the email maps to an account,
// so this endpoint cannot be used to enumerate operators. The reset token
// is only ever written to the audit trail side channel (delivery transport
// is out of scope here).
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		BadRequest(w, "Email is required")
		return
	}

	ticket, err := h.store.IssueResetTicket(r.Context(), req.Email)
	if err != nil {
		InternalServerError(w, "Failed to process request")
		return
	}
	if ticket != nil {
		h.auditLogin(r, models.AuditPasswordResetIssue, &ticket.UserID, string(models.SeverityInfo))
	}

	WriteJSONOK(w, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

// ResetPasswordRequest is the request body for POST /portal/auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword handles POST /portal/auth/reset-password.
// Consumes a reset ticket and installs the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		BadRequest(w, "Token is required")
		return
	}
	if err := crypto.ValidatePassword(req.NewPassword); err != nil {
		BadRequest(w, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		InternalServerError(w, "Failed to process password")
		return
	}

	if err := h.store.RedeemResetTicket(r.Context(), req.Token, hash); err != nil {
		if errors.Is(err, models.ErrResetTicketInvalid) {
			BadRequest(w, "Invalid or expired reset token")
			return
		}
		InternalServerError(w, "Failed to reset password")
		return
	}

	h.auditLogin(r, models.AuditPasswordResetDone, nil, string(models.SeverityInfo))
	WriteJSONOK(w, map[string]string{"message": "Password has been reset"})
}

func (h *AuthHandler) auditLogin(r *http.Request, eventType string, userID *uint, severity string) {
	entry := &models.AuditEntry{
		EventType: eventType,
		UserID:    userID,
		SourceIP:  r.RemoteAddr,
		Severity:  severity,
	}
	if err := h.store.AppendAudit(r.Context(), entry); err != nil {
		logger.WarnCtx(r.Context(), "failed to append audit entry",
			logger.EventType(eventType), logger.Err(err))
	}
}

// userToResponse converts a User to a UserResponse for API output.
func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.GetRole()),
		ClientID:  user.BoundClientID(),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
}
