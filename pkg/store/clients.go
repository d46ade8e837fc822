package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/courierhq/courier/pkg/models"
)

// ============================================
// CLIENT IDENTITY OPERATIONS
// ============================================

// RegisterClient creates a client identity record. At most one record exists
// per client_id; a duplicate registration fails with ErrClientExists.
func (s *GORMStore) RegisterClient(ctx context.Context, client *models.Client) error {
	if err := client.Validate(); err != nil {
		return err
	}
	if client.Status == "" {
		client.Status = string(models.ClientActive)
	}
	if client.IssuedAt.IsZero() {
		client.IssuedAt = time.Now()
	}
	return create(s.db, ctx, client, models.ErrClientExists)
}

// GetClient looks up a client by its certificate Common Name.
func (s *GORMStore) GetClient(ctx context.Context, clientID string) (*models.Client, error) {
	return getByField[models.Client](s.db, ctx, "client_id", clientID, models.ErrClientNotFound)
}

// GetClientByFingerprint looks up a client by certificate fingerprint.
func (s *GORMStore) GetClientByFingerprint(ctx context.Context, fingerprint string) (*models.Client, error) {
	return getByField[models.Client](s.db, ctx, "cert_fingerprint", fingerprint, models.ErrClientNotFound)
}

// ListClients returns all client identities.
func (s *GORMStore) ListClients(ctx context.Context) ([]*models.Client, error) {
	return listAll[models.Client](s.db, ctx)
}

// ListExpiringClients returns active clients whose validity window ends
// within the given number of days.
func (s *GORMStore) ListExpiringClients(ctx context.Context, withinDays int) ([]*models.Client, error) {
	cutoff := time.Now().AddDate(0, 0, withinDays)
	var clients []*models.Client
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(models.ClientActive), cutoff).
		Order("expires_at").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// RevokeClient marks a client as revoked. Revocation is terminal: revoking
// an already-revoked client fails with ErrAlreadyRevoked and the record is
// never reverted.
func (s *GORMStore) RevokeClient(ctx context.Context, clientID, reason string) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).First(&client).Error; err != nil {
			return convertNotFoundError(err, models.ErrClientNotFound)
		}
		if client.Status == string(models.ClientRevoked) {
			return models.ErrAlreadyRevoked
		}

		now := time.Now()
		client.Status = string(models.ClientRevoked)
		client.RevokedAt = &now
		client.RevocationReason = reason

		return tx.Model(&client).
			Select("Status", "RevokedAt", "RevocationReason").
			Updates(&client).Error
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}
