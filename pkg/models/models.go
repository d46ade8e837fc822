// Package models defines the persistent entities of the messaging broker
// and the sentinel errors shared across its components.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Client{},
		&Message{},
		&AuditEntry{},
		&PasswordReset{},
	}
}
