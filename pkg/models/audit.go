package models

import "time"

// AuditSeverity classifies audit entries.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// IsValid checks if the severity is a valid AuditSeverity.
func (s AuditSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Audit event types recorded by the broker.
const (
	AuditMessageRegistered  = "message_registered"
	AuditMessageDelivered   = "message_delivered"
	AuditMessageFailed      = "message_failed"
	AuditMessageBodyAccess  = "message_body_accessed"
	AuditClientRegistered   = "client_registered"
	AuditClientRevoked      = "client_revoked"
	AuditClientRejected     = "client_rejected"
	AuditHeaderIdentityUsed = "header_identity_used"
	AuditLoginSuccess       = "login_success"
	AuditLoginFailed        = "login_failed"
	AuditPasswordChanged    = "password_changed"
	AuditPasswordResetIssue = "password_reset_requested"
	AuditPasswordResetDone  = "password_reset_completed"
	AuditUserCreated        = "user_created"
	AuditUserUpdated        = "user_updated"
	AuditDataRetentionPurge = "data_retention_purge"
)

// AuditEntry is an append-only record of a security-relevant event.
// Deleting an operator nulls UserID but the entry itself is retained.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventType string    `gorm:"not null;size:100;index" json:"event_type"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	ClientID  *string   `gorm:"size:255;index" json:"client_id,omitempty"`
	SourceIP  string    `gorm:"size:64" json:"source_ip,omitempty"`
	Severity  string    `gorm:"default:info;size:20" json:"severity"`
	Details   string    `json:"details,omitempty"` // free-form JSON blob
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_log"
}
