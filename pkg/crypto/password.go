package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the default cost parameter for bcrypt hashing.
// Cost 10 provides a good balance between security and performance.
const DefaultBcryptCost = 10

// MinPasswordLength is the minimum required password length, enforced at
// call sites via ValidatePassword rather than inside the hasher.
const MinPasswordLength = 8

// bcryptMaxBytes is bcrypt's input ceiling. Longer passwords are truncated
// identically in HashPassword and VerifyPassword; the two must never
// diverge or long passwords silently stop authenticating.
const bcryptMaxBytes = 72

// ErrPasswordTooShort is returned when a password is shorter than
// MinPasswordLength.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// truncateForBcrypt caps the password at bcrypt's 72-byte input limit.
func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}

// HashPassword creates a bcrypt hash of the given password. Input beyond
// 72 bytes is truncated before hashing.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HashPasswordWithCost creates a bcrypt hash with a custom cost (4-31).
func HashPasswordWithCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a bcrypt hash, applying the
// same 72-byte truncation as HashPassword.
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncateForBcrypt(password))
	return err == nil
}

// ValidatePassword checks the minimum-length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// NeedsRehash checks if a hash should be regenerated, e.g. after the cost
// parameter was raised.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < DefaultBcryptCost
}
