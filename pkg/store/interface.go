package store

import (
	"context"
	"time"

	"github.com/courierhq/courier/pkg/models"
)

// Store is the persistence interface consumed by the registry API handlers.
// GORMStore is the production implementation; handlers accept the interface
// so tests can substitute an in-memory SQLite store.
type Store interface {
	// Client identity
	RegisterClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, clientID string) (*models.Client, error)
	GetClientByFingerprint(ctx context.Context, fingerprint string) (*models.Client, error)
	ListClients(ctx context.Context) ([]*models.Client, error)
	ListExpiringClients(ctx context.Context, withinDays int) ([]*models.Client, error)
	RevokeClient(ctx context.Context, clientID, reason string) (*models.Client, error)

	// Operators
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID uint, role models.UserRole) error
	UpdateUserStatus(ctx context.Context, userID, callerID uint, active bool) error
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID uint, timestamp time.Time) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	DeliverMessage(ctx context.Context, messageID string) (time.Time, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus, attemptCount int, lastError string) error
	ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, int64, error)
	GetMessageStats(ctx context.Context) (*MessageStats, error)
	PurgeDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Audit ledger
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, eventType string, limit, offset int) ([]*models.AuditEntry, error)

	// Password reset tickets
	IssueResetTicket(ctx context.Context, email string) (*models.PasswordReset, error)
	RedeemResetTicket(ctx context.Context, token, newPasswordHash string) error

	// Lifecycle
	Healthcheck(ctx context.Context) error
	Close() error
}
