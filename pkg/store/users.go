package store

import (
	"context"
	"errors"
	"time"

	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
)

// ============================================
// OPERATOR (USER) OPERATIONS
// ============================================

// CreateUser inserts a portal operator. Email is unique.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Role == "" {
		user.Role = string(models.RoleUser)
	}
	return create(s.db, ctx, user, models.ErrDuplicateUser)
}

// GetUserByEmail looks up an operator by email.
func (s *GORMStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "email", email, models.ErrUserNotFound)
}

// GetUserByID looks up an operator by ID.
func (s *GORMStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

// ListUsers returns all operators.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](s.db, ctx)
}

// Authenticate verifies email and password against an active operator.
// Every failure surfaces as ErrAuthFailed: the caller must not be able to
// distinguish an unknown email from a wrong password or a disabled account.
func (s *GORMStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrAuthFailed
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, models.ErrAuthFailed
	}

	if !crypto.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrAuthFailed
	}

	return user, nil
}

// UpdateUserRole changes an operator's role.
func (s *GORMStore) UpdateUserRole(ctx context.Context, userID uint, role models.UserRole) error {
	if !role.IsValid() {
		return models.ErrInvalidTransition
	}
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", string(role))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateUserStatus toggles an operator's active flag. Operators may not
// change their own flag, so a caller acting on itself is refused.
func (s *GORMStore) UpdateUserStatus(ctx context.Context, userID, callerID uint, active bool) error {
	if userID == callerID {
		return models.ErrSelfUpdate
	}
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces an operator's password hash.
func (s *GORMStore) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin stamps a successful login.
func (s *GORMStore) UpdateLastLogin(ctx context.Context, userID uint, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login", timestamp)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
