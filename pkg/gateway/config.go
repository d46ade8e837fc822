// Package gateway implements the public mTLS ingress for message
// submission. It is the only externally reachable process: clients present
// certificates, payloads are validated and rate limited, and accepted
// messages are registered with the registry before being enqueued for the
// delivery workers.
package gateway

import (
	"fmt"
	"time"

	"github.com/courierhq/courier/internal/tlsutil"
)

// Config configures the gateway HTTP server.
type Config struct {
	// Port is the HTTPS port for the ingress endpoints.
	// Default: 8443
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// TLS is the certificate material for the mTLS listener. CAFile must be
	// set in production; without it the listener accepts any caller.
	TLS tlsutil.ServerConfig `mapstructure:"tls" yaml:"tls"`

	// RegistryURL is the base URL of the registry's internal surface.
	// Default: http://localhost:8080
	RegistryURL string `mapstructure:"registry_url" yaml:"registry_url"`

	// RegistryTLS configures the client side of the registry connection.
	RegistryTLS tlsutil.ClientConfig `mapstructure:"registry_tls" yaml:"registry_tls"`

	// RegistryTimeout bounds each registry call. Default: 5s
	RegistryTimeout time.Duration `mapstructure:"registry_timeout" yaml:"registry_timeout"`

	// RateLimit configures the per-client sliding window limiter.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// AllowHeaderIdentity permits the X-Client-ID header to stand in for a
	// client certificate. Development only: every use is written to the
	// audit ledger with WARNING severity. Default: false
	AllowHeaderIdentity bool `mapstructure:"allow_header_identity" yaml:"allow_header_identity"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// RateLimitConfig configures the ingress rate limiter.
type RateLimitConfig struct {
	// Window is the sliding window length. Default: 60s
	Window time.Duration `mapstructure:"window" yaml:"window"`

	// MaxRequests is the number of requests a client may make per window.
	// Default: 100
	MaxRequests int `mapstructure:"max_requests" yaml:"max_requests"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8443
	}
	if c.RegistryURL == "" {
		c.RegistryURL = "http://localhost:8080"
	}
	if c.RegistryTimeout == 0 {
		c.RegistryTimeout = 5 * time.Second
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 60 * time.Second
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
		return fmt.Errorf("gateway TLS cert_file and key_file are required")
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests cannot be negative")
	}
	return nil
}
