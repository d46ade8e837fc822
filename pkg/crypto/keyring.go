// Package crypto provides the broker's cryptographic primitives: versioned
// authenticated encryption of message bodies, salted hashing of sender
// numbers, and bcrypt password handling for portal operators.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/fernet/fernet-go"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/models"
)

// Config configures the crypto service.
type Config struct {
	// KeyDir is the directory holding versioned key files (v<N>.key, each a
	// base64url-encoded 32-byte Fernet key). Permissions should be owner-only.
	KeyDir string `mapstructure:"key_dir" yaml:"key_dir"`

	// CurrentVersion designates the key used for new encryptions.
	// Default: the highest loaded version.
	CurrentVersion int `mapstructure:"current_version" yaml:"current_version"`

	// HashSalt is the process-wide secret prepended to sender numbers before
	// hashing. Can also be set via the COURIER_HASH_SALT environment variable,
	// which takes precedence.
	HashSalt string `mapstructure:"hash_salt" yaml:"hash_salt"`
}

// EnvHashSalt is the environment variable overriding the configured hash salt.
const EnvHashSalt = "COURIER_HASH_SALT"

// GetHashSalt returns the hash salt, preferring the environment variable.
func (c *Config) GetHashSalt() string {
	if env := os.Getenv(EnvHashSalt); env != "" {
		return env
	}
	return c.HashSalt
}

var keyFilePattern = regexp.MustCompile(`^v(\d+)\.key$`)

// keyring is an immutable version → key map. Reloads swap the whole map
// atomically so readers never observe a partial rotation.
type keyring struct {
	keys    map[int]*fernet.Key
	current int
}

// Service performs body encryption and sender-number hashing.
type Service struct {
	ring atomic.Pointer[keyring]
	salt []byte
}

// NewService loads all key versions from cfg.KeyDir and returns a ready
// service. At least one key file and a non-empty salt are required.
func NewService(cfg Config) (*Service, error) {
	salt := cfg.GetHashSalt()
	if salt == "" {
		return nil, fmt.Errorf("hash salt is required: %w", models.ErrCryptoUnavailable)
	}

	keys, err := loadKeyDir(cfg.KeyDir)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no key files in %s: %w", cfg.KeyDir, models.ErrCryptoUnavailable)
	}

	current := cfg.CurrentVersion
	if current == 0 {
		for v := range keys {
			if v > current {
				current = v
			}
		}
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("current key version %d not loaded: %w", current, models.ErrCryptoUnavailable)
	}

	s := &Service{salt: []byte(salt)}
	s.ring.Store(&keyring{keys: keys, current: current})
	logger.Info("Encryption keys loaded", "versions", len(keys), "current_version", current)
	return s, nil
}

// NewServiceWithKeys builds a service from already-encoded keys. Intended for
// tests and for callers that manage key material themselves.
func NewServiceWithKeys(encoded map[int]string, current int, salt string) (*Service, error) {
	if salt == "" {
		return nil, fmt.Errorf("hash salt is required: %w", models.ErrCryptoUnavailable)
	}
	keys := make(map[int]*fernet.Key, len(encoded))
	for version, enc := range encoded {
		k, err := fernet.DecodeKey(enc)
		if err != nil {
			return nil, fmt.Errorf("decode key version %d: %w", version, err)
		}
		keys[version] = k
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("current key version %d not loaded: %w", current, models.ErrCryptoUnavailable)
	}
	s := &Service{salt: []byte(salt)}
	s.ring.Store(&keyring{keys: keys, current: current})
	return s, nil
}

func loadKeyDir(dir string) (map[int]*fernet.Key, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	keys := make(map[int]*fernet.Key)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := keyFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil || version < 1 {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", entry.Name(), err)
		}
		k, err := fernet.DecodeKey(string(trimSpace(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", entry.Name(), err)
		}
		keys[version] = k
	}
	return keys, nil
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// CurrentVersion returns the version used for new encryptions.
func (s *Service) CurrentVersion() int {
	return s.ring.Load().current
}

// Ready reports whether key material is loaded. Used by health checks.
func (s *Service) Ready() bool {
	r := s.ring.Load()
	return r != nil && len(r.keys) > 0 && len(s.salt) > 0
}

// Encrypt encrypts a message body with the current key. It returns the
// Fernet token (base64url text, safe for storage) and the key version used.
func (s *Service) Encrypt(plaintext string) (string, int, error) {
	r := s.ring.Load()
	if r == nil {
		return "", 0, models.ErrCryptoUnavailable
	}
	key := r.keys[r.current]
	tok, err := fernet.EncryptAndSign([]byte(plaintext), key)
	if err != nil {
		return "", 0, fmt.Errorf("encrypt message: %w", err)
	}
	return string(tok), r.current, nil
}

// Decrypt decrypts a token produced by Encrypt. The version parameter selects
// the key; an unknown version falls back to the current key and fails closed
// with ErrDecryptFailed when authentication does not hold.
func (s *Service) Decrypt(token string, version int) (string, error) {
	r := s.ring.Load()
	if r == nil {
		return "", models.ErrCryptoUnavailable
	}
	key, ok := r.keys[version]
	if !ok {
		logger.Warn("Unknown key version, falling back to current",
			"key_version", version, "current_version", r.current)
		key = r.keys[r.current]
	}
	// TTL 0 disables token expiry; message retention is handled in the store.
	plaintext := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{key})
	if plaintext == nil {
		return "", models.ErrDecryptFailed
	}
	return string(plaintext), nil
}

// AddKey loads an additional key version without dropping existing ones.
// When makeCurrent is set, new encryptions switch to it. Rotation is
// non-destructive so rows encrypted under old versions stay readable.
func (s *Service) AddKey(version int, encoded string, makeCurrent bool) error {
	k, err := fernet.DecodeKey(encoded)
	if err != nil {
		return fmt.Errorf("decode key version %d: %w", version, err)
	}

	old := s.ring.Load()
	keys := make(map[int]*fernet.Key, len(old.keys)+1)
	for v, existing := range old.keys {
		keys[v] = existing
	}
	keys[version] = k

	current := old.current
	if makeCurrent {
		current = version
	}
	s.ring.Store(&keyring{keys: keys, current: current})
	logger.Info("Encryption key added", "key_version", version, "current_version", current)
	return nil
}

// HashPhone hashes a sender number as hex(SHA-256(salt || number)).
// Deterministic so repeated senders collide; salted against rainbow tables.
func (s *Service) HashPhone(number string) (string, error) {
	if len(s.salt) == 0 {
		return "", models.ErrCryptoUnavailable
	}
	h := sha256.New()
	h.Write(s.salt)
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyPhoneHash checks a sender number against a stored digest.
func (s *Service) VerifyPhoneHash(number, digest string) bool {
	computed, err := s.HashPhone(number)
	if err != nil {
		return false
	}
	return computed == digest
}

// GenerateKey returns a fresh base64url-encoded Fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return k.Encode(), nil
}

// SaveKeyFile writes an encoded key to <dir>/v<version>.key with owner-only
// permissions, creating the directory when needed.
func SaveKeyFile(dir string, version int, encoded string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create key directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("v%d.key", version))
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	return path, nil
}
