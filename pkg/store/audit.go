package store

import (
	"context"

	"github.com/courierhq/courier/pkg/models"
)

// ============================================
// AUDIT LEDGER
// ============================================

// AppendAudit records a security-relevant event. The ledger is append-only;
// no update or delete operation exists on it.
func (s *GORMStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Severity == "" {
		entry.Severity = string(models.SeverityInfo)
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListAudit returns the newest audit entries up to limit, skipping offset
// rows, optionally filtered by event type.
func (s *GORMStore) ListAudit(ctx context.Context, eventType string, limit, offset int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Model(&models.AuditEntry{})
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var entries []*models.AuditEntry
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
