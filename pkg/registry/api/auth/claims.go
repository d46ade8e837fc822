// Package auth provides JWT authentication for the operator portal and
// admin API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/courierhq/courier/pkg/models"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims carried by portal tokens.
//
// Authorization decisions read only these claims: the role gates admin and
// user-management surfaces, and ClientID scopes which messages an operator
// may list. A USER with no client binding sees no messages at all.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the operator's database identifier.
	UserID uint `json:"uid"`

	// Email is the operator's login email.
	Email string `json:"email"`

	// Role is one of "user", "user_manager" or "admin".
	Role string `json:"role"`

	// ClientID binds a USER to the messaging client whose traffic they may
	// inspect. Empty means no binding.
	ClientID string `json:"client_id,omitempty"`

	// TokenType indicates whether this is an access or refresh token.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}

// IsAdmin returns true if the operator holds the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == string(models.RoleAdmin)
}

// CanManageUsers returns true for admins and user managers.
func (c *Claims) CanManageUsers() bool {
	return c.IsAdmin() || c.Role == string(models.RoleUserManager)
}
