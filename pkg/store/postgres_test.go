//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
)

// TestPostgresStore exercises the store against a real PostgreSQL instance.
// The behavior under test is the same as the SQLite path; what differs is
// dialect-specific ground like unique constraint error mapping and DSN
// handling, so the cases focus on those.
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("courier_test"),
		postgres.WithUsername("courier_test"),
		postgres.WithPassword("courier_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "courier_test",
			User:     "courier_test",
			Password: "courier_test",
			SSLMode:  "disable",
		},
	})
	require.NoError(t, err, "failed to open postgres store")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Healthcheck(ctx))

	t.Run("duplicate client maps unique violation", func(t *testing.T) {
		client := &models.Client{
			ClientID:        "pg-client-001",
			CertFingerprint: fmt.Sprintf("%064d", 1),
			Domain:          "example.com",
			ExpiresAt:       time.Now().Add(24 * time.Hour),
		}
		require.NoError(t, s.RegisterClient(ctx, client))

		dup := &models.Client{
			ClientID:        "pg-client-001",
			CertFingerprint: fmt.Sprintf("%064d", 2),
			ExpiresAt:       time.Now().Add(24 * time.Hour),
		}
		err := s.RegisterClient(ctx, dup)
		assert.ErrorIs(t, err, models.ErrClientExists)
	})

	t.Run("duplicate message maps unique violation", func(t *testing.T) {
		messageID := uuid.NewString()
		msg := &models.Message{
			MessageID:     messageID,
			ClientID:      "pg-client-001",
			SenderHash:    fmt.Sprintf("%064d", 3),
			EncryptedBody: []byte("ciphertext"),
			KeyVersion:    1,
			QueuedAt:      time.Now(),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))

		dup := &models.Message{
			MessageID:     messageID,
			ClientID:      "pg-client-001",
			SenderHash:    fmt.Sprintf("%064d", 3),
			EncryptedBody: []byte("ciphertext"),
			KeyVersion:    1,
			QueuedAt:      time.Now(),
		}
		assert.ErrorIs(t, s.CreateMessage(ctx, dup), models.ErrAlreadyRegistered)
	})

	t.Run("message lifecycle", func(t *testing.T) {
		messageID := uuid.NewString()
		msg := &models.Message{
			MessageID:     messageID,
			ClientID:      "pg-client-001",
			SenderHash:    fmt.Sprintf("%064d", 4),
			EncryptedBody: []byte("ciphertext"),
			KeyVersion:    1,
			QueuedAt:      time.Now(),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))

		require.NoError(t, s.UpdateMessageStatus(ctx, messageID, models.MessageQueued, 1, "delivery refused"))

		deliveredAt, err := s.DeliverMessage(ctx, messageID)
		require.NoError(t, err)
		assert.False(t, deliveredAt.IsZero())

		_, err = s.DeliverMessage(ctx, messageID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		got, err := s.GetMessage(ctx, messageID)
		require.NoError(t, err)
		assert.Equal(t, string(models.MessageDelivered), got.Status)
		assert.Equal(t, 1, got.AttemptCount)
	})

	t.Run("concurrent delivery confirms exactly once", func(t *testing.T) {
		messageID := uuid.NewString()
		msg := &models.Message{
			MessageID:     messageID,
			ClientID:      "pg-client-001",
			SenderHash:    fmt.Sprintf("%064d", 5),
			EncryptedBody: []byte("ciphertext"),
			KeyVersion:    1,
			QueuedAt:      time.Now(),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))

		const racers = 8
		errs := make(chan error, racers)
		for i := 0; i < racers; i++ {
			go func() {
				_, err := s.DeliverMessage(ctx, messageID)
				errs <- err
			}()
		}

		delivered := 0
		for i := 0; i < racers; i++ {
			if err := <-errs; err == nil {
				delivered++
			} else {
				assert.ErrorIs(t, err, models.ErrInvalidTransition)
			}
		}
		assert.Equal(t, 1, delivered, "exactly one confirmation must win")
	})

	t.Run("concurrent redemption consumes ticket exactly once", func(t *testing.T) {
		hash, err := crypto.HashPassword("original-password")
		require.NoError(t, err)
		user := &models.User{Email: "pg-operator@example.org", PasswordHash: hash, IsActive: true}
		require.NoError(t, s.CreateUser(ctx, user))

		ticket, err := s.IssueResetTicket(ctx, "pg-operator@example.org")
		require.NoError(t, err)
		require.NotNil(t, ticket)

		const racers = 8
		errs := make(chan error, racers)
		for i := 0; i < racers; i++ {
			i := i
			go func() {
				newHash, err := crypto.HashPassword(fmt.Sprintf("candidate-%d", i))
				if err != nil {
					errs <- err
					return
				}
				errs <- s.RedeemResetTicket(ctx, ticket.Token, newHash)
			}()
		}

		redeemed := 0
		for i := 0; i < racers; i++ {
			if err := <-errs; err == nil {
				redeemed++
			} else {
				assert.ErrorIs(t, err, models.ErrResetTicketInvalid)
			}
		}
		assert.Equal(t, 1, redeemed, "exactly one redemption must win")
	})
}
