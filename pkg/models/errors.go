package models

import "errors"

// Common errors for identity, message, and crypto operations.
var (
	// Client identity errors
	ErrClientNotFound = errors.New("client not found")
	ErrClientExists   = errors.New("client already registered")
	ErrAlreadyRevoked = errors.New("client already revoked")

	// Operator errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrAuthFailed    = errors.New("invalid email or password")
	ErrSelfUpdate    = errors.New("operators may not change their own active status")

	// Message errors
	ErrMessageNotFound   = errors.New("message not found")
	ErrAlreadyRegistered = errors.New("message already registered")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAttemptRegression = errors.New("attempt count may not decrease")

	// Password reset errors
	ErrResetTicketInvalid = errors.New("reset token is invalid or expired")

	// Crypto errors
	ErrCryptoUnavailable = errors.New("encryption keys not loaded")
	ErrDecryptFailed     = errors.New("decryption failed")
)
