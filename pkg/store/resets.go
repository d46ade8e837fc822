package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/courierhq/courier/pkg/models"
)

// ResetTicketTTL is how long a password reset ticket stays redeemable.
const ResetTicketTTL = time.Hour

// IssueResetTicket creates a single-use password reset ticket for the
// operator behind the given email. When the email is unknown it returns
// (nil, nil): callers must report success either way so account existence
// cannot be probed through this path.
func (s *GORMStore) IssueResetTicket(ctx context.Context, email string) (*models.PasswordReset, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	token, err := generateResetToken()
	if err != nil {
		return nil, err
	}

	ticket := &models.PasswordReset{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(ResetTicketTTL),
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, err
	}
	return ticket, nil
}

// RedeemResetTicket consumes a ticket and installs the new password hash.
// A ticket redeems at most once; expired, used, or unknown tokens fail with
// ErrResetTicketInvalid.
func (s *GORMStore) RedeemResetTicket(ctx context.Context, token, newPasswordHash string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket models.PasswordReset
		if err := tx.Where("token = ?", token).First(&ticket).Error; err != nil {
			return convertNotFoundError(err, models.ErrResetTicketInvalid)
		}

		now := time.Now()
		if !ticket.IsValid(now) {
			return models.ErrResetTicketInvalid
		}

		// Guard on used_at so concurrent redemptions consume the ticket
		// exactly once.
		res := tx.Model(&models.PasswordReset{}).
			Where("id = ? AND used_at IS NULL", ticket.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrResetTicketInvalid
		}

		result := tx.Model(&models.User{}).
			Where("id = ?", ticket.UserID).
			Update("password_hash", newPasswordHash)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		return nil
	})
}

// generateResetToken returns a high-entropy urlsafe token (32 random bytes).
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
