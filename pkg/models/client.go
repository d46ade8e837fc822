package models

import (
	"fmt"
	"time"
)

// ClientStatus represents the lifecycle state of a client certificate identity.
type ClientStatus string

const (
	// ClientActive is the only state in which a client may submit messages.
	ClientActive ClientStatus = "active"
	// ClientRevoked is terminal; a revoked identity never becomes active again.
	ClientRevoked ClientStatus = "revoked"
	// ClientExpired is computed when now >= ExpiresAt.
	ClientExpired ClientStatus = "expired"
)

// IsValid checks if the status is a valid ClientStatus.
func (s ClientStatus) IsValid() bool {
	return s == ClientActive || s == ClientRevoked || s == ClientExpired
}

// Client represents a client machine identity tied to an mTLS certificate.
//
// The client_id is the certificate's Common Name. At most one ACTIVE record
// exists per client_id; revocation is terminal and expiry is evaluated
// lazily on access against ExpiresAt.
type Client struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ClientID         string     `gorm:"uniqueIndex;not null;size:255" json:"client_id"`
	CertFingerprint  string     `gorm:"uniqueIndex;not null;size:128" json:"cert_fingerprint"`
	Domain           string     `gorm:"size:255" json:"domain"`
	Status           string     `gorm:"default:active;size:20;index" json:"status"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `gorm:"size:512" json:"revocation_reason,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Client.
func (Client) TableName() string {
	return "clients"
}

// Validate checks if the client record is well-formed.
func (c *Client) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.CertFingerprint == "" {
		return fmt.Errorf("cert_fingerprint is required")
	}
	if c.Status != "" && !ClientStatus(c.Status).IsValid() {
		return fmt.Errorf("invalid status %q", c.Status)
	}
	return nil
}

// EffectiveStatus returns the status with lazy expiry applied: an ACTIVE
// record whose validity window has passed reads as EXPIRED. Revocation
// always wins over expiry.
func (c *Client) EffectiveStatus(now time.Time) ClientStatus {
	status := ClientStatus(c.Status)
	if status == ClientRevoked {
		return ClientRevoked
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return ClientExpired
	}
	return status
}

// IsActive reports whether the client may submit messages right now.
func (c *Client) IsActive(now time.Time) bool {
	return c.EffectiveStatus(now) == ClientActive
}
