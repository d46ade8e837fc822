package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of a portal operator.
type UserRole string

const (
	// RoleUser is a regular operator. When bound to a client it may view
	// that client's messages; unbound it sees nothing.
	RoleUser UserRole = "user"
	// RoleUserManager may manage operator accounts but not certificates
	// or messages.
	RoleUserManager UserRole = "user_manager"
	// RoleAdmin has full access, including message body decryption.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleUserManager || r == RoleAdmin
}

// User represents a portal operator for authentication and authorization.
//
// Operators authenticate with email and password and receive JWT tokens.
// A USER bound to a client_id is scoped to that client's messages.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         string     `gorm:"default:user;size:50" json:"role"` // user, user_manager, admin
	ClientID     *string    `gorm:"size:255;index" json:"client_id,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// CanManageUsers checks if the user may manage operator accounts.
func (u *User) CanManageUsers() bool {
	return u.Role == string(RoleAdmin) || u.Role == string(RoleUserManager)
}

// GetRole returns the user's role as a UserRole type.
func (u *User) GetRole() UserRole {
	return UserRole(u.Role)
}

// BoundClientID returns the client the user is scoped to, or "" if unbound.
func (u *User) BoundClientID() string {
	if u.ClientID == nil {
		return ""
	}
	return *u.ClientID
}
