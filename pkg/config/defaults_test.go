package config

import (
	"strings"
	"testing"
	"time"

	"github.com/courierhq/courier/pkg/store"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected format text, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected output stdout, got %q", cfg.Logging.Output)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("expected sqlite database, got %q", cfg.Database.Type)
	}
	if cfg.Queue.Addr != "localhost:6379" {
		t.Errorf("expected default queue addr, got %q", cfg.Queue.Addr)
	}
	if cfg.Queue.PopTimeout != 5*time.Second {
		t.Errorf("expected 5s pop timeout, got %s", cfg.Queue.PopTimeout)
	}
	if cfg.Gateway.Port != 8443 {
		t.Errorf("expected gateway port 8443, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.RateLimit.MaxRequests != 100 || cfg.Gateway.RateLimit.Window != 60*time.Second {
		t.Errorf("unexpected default rate limit %+v", cfg.Gateway.RateLimit)
	}
	if cfg.Gateway.AllowHeaderIdentity {
		t.Error("header identity bypass must be disabled by default")
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.RetryInterval != 30*time.Second {
		t.Errorf("expected 30s retry interval, got %s", cfg.Worker.RetryInterval)
	}
	if cfg.Worker.MaxAttempts != 10000 {
		t.Errorf("expected 10000 max attempts, got %d", cfg.Worker.MaxAttempts)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics must be opt-in")
	}
}

func TestApplyDefaults_NormalizesLogLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		ShutdownTimeout: 5 * time.Second,
		Logging:         LoggingConfig{Output: "/var/log/courier.log"},
	}
	ApplyDefaults(cfg)
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("explicit shutdown timeout overwritten: %s", cfg.ShutdownTimeout)
	}
	if cfg.Logging.Output != "/var/log/courier.log" {
		t.Errorf("explicit output overwritten: %q", cfg.Logging.Output)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected oneof validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_DatabaseConsistency(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Type = store.DatabaseTypePostgres
	cfg.Database.Postgres.Host = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for postgres without host")
	}
	if !strings.Contains(err.Error(), "postgres host") {
		t.Errorf("unexpected error: %v", err)
	}
}
