package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/courierhq/courier/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Called after loading configuration from file and environment variables.
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Database.ApplyDefaults()
	cfg.Queue.ApplyDefaults()
	cfg.Gateway.ApplyDefaults()
	cfg.Worker.ApplyDefaults()
	applyCryptoDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyCryptoDefaults sets crypto defaults.
func applyCryptoDefaults(cfg *Config) {
	if cfg.Crypto.KeyDir == "" {
		cfg.Crypto.KeyDir = "/etc/courier/keys"
	}
}

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// Validate checks the configuration against its struct validation tags.
//
// Component-specific consistency checks (gateway TLS material, worker
// bounds, JWT secret length) run when the owning process starts, so a
// registry-only node does not need gateway certificates to pass here.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	return nil
}
