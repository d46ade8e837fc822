package models

import "time"

// PasswordReset is a single-use, expiring ticket that lets an operator set
// a new password. A ticket is valid while UsedAt is nil and now < ExpiresAt.
type PasswordReset struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Token     string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for PasswordReset.
func (PasswordReset) TableName() string {
	return "password_resets"
}

// IsValid reports whether the ticket may still be redeemed at the given time.
func (p *PasswordReset) IsValid(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}
