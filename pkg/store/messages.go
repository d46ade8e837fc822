package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/courierhq/courier/pkg/models"
)

// ============================================
// MESSAGE OPERATIONS
// ============================================

// CreateMessage inserts a message row with status queued and zero attempts.
// The unique index on message_id gives idempotency: a repeated registration
// fails with ErrAlreadyRegistered and leaves no side effects.
func (s *GORMStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Status == "" {
		msg.Status = string(models.MessageQueued)
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now()
	}
	return create(s.db, ctx, msg, models.ErrAlreadyRegistered)
}

// GetMessage looks up a message by its external UUID.
func (s *GORMStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	return getByField[models.Message](s.db, ctx, "message_id", messageID, models.ErrMessageNotFound)
}

// DeliverMessage transitions a message from queued or processing to
// delivered, stamping delivered_at. It fails with ErrMessageNotFound for an
// unknown UUID and ErrInvalidTransition when the message is already in a
// terminal state. Callers treating retries as idempotent must map
// ErrInvalidTransition on an already-delivered row to success.
func (s *GORMStore) DeliverMessage(ctx context.Context, messageID string) (time.Time, error) {
	var deliveredAt time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		if err := tx.Where("message_id = ?", messageID).First(&msg).Error; err != nil {
			return convertNotFoundError(err, models.ErrMessageNotFound)
		}

		if !msg.CanTransitionTo(models.MessageDelivered) {
			return models.ErrInvalidTransition
		}

		deliveredAt = time.Now()
		// Guard on the non-terminal statuses so concurrent confirmations
		// settle a message exactly once.
		res := tx.Model(&models.Message{}).
			Where("message_id = ? AND status IN ?", messageID, []string{
				string(models.MessageQueued),
				string(models.MessageProcessing),
			}).
			Updates(map[string]any{
				"status":          string(models.MessageDelivered),
				"delivered_at":    deliveredAt,
				"last_attempt_at": deliveredAt,
				"last_error":      "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return deliveredAt, nil
}

// UpdateMessageStatus sets the status and attempt count of a message.
// The attempt count is monotone: a value below the stored one fails with
// ErrAttemptRegression. Terminal rows reject further updates.
func (s *GORMStore) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus, attemptCount int, lastError string) error {
	if !status.IsValid() {
		return models.ErrInvalidTransition
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		if err := tx.Where("message_id = ?", messageID).First(&msg).Error; err != nil {
			return convertNotFoundError(err, models.ErrMessageNotFound)
		}

		if !msg.CanTransitionTo(status) {
			return models.ErrInvalidTransition
		}
		if attemptCount < msg.AttemptCount {
			return models.ErrAttemptRegression
		}

		now := time.Now()
		updates := map[string]any{
			"status":          string(status),
			"attempt_count":   attemptCount,
			"last_error":      lastError,
			"last_attempt_at": now,
		}
		if status == models.MessageDelivered {
			updates["delivered_at"] = now
		}
		return tx.Model(&msg).Updates(updates).Error
	})
}

// MessageFilter narrows ListMessages. A zero PageSize defaults to 50.
type MessageFilter struct {
	ClientID string
	Status   models.MessageStatus
	Page     int
	PageSize int
}

// ListMessages returns a page of messages, newest first, along with the
// total number of rows matching the filter.
func (s *GORMStore) ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{})
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	var messages []*models.Message
	err := q.Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// MessageStats aggregates message counts for the operator console.
type MessageStats struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
	LastHour  int64            `json:"last_hour"`
	Last24h   int64            `json:"last_24h"`
	Delivered int64            `json:"delivered"`
	Failed    int64            `json:"failed"`
}

// GetMessageStats computes totals, per-status counts, and per-window counts
// using range predicates on created_at.
func (s *GORMStore) GetMessageStats(ctx context.Context) (*MessageStats, error) {
	stats := &MessageStats{ByStatus: make(map[string]int64)}

	if err := s.db.WithContext(ctx).Model(&models.Message{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
	}
	stats.Delivered = stats.ByStatus[string(models.MessageDelivered)]
	stats.Failed = stats.ByStatus[string(models.MessageFailed)]

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("created_at >= ?", now.Add(-time.Hour)).
		Count(&stats.LastHour).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&stats.Last24h).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// PurgeDeliveredBefore removes delivered messages older than the cutoff and
// returns the number of rows deleted. Used by the data retention endpoint.
func (s *GORMStore) PurgeDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status = ? AND delivered_at < ?", string(models.MessageDelivered), cutoff).
		Delete(&models.Message{})
	return result.RowsAffected, result.Error
}
