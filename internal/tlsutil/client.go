package tlsutil

import (
	"crypto/tls"
	"fmt"
)

// ClientConfig describes how an internal component dials another one.
type ClientConfig struct {
	// CAFile pins the server CA. Empty means the system roots.
	CAFile string `mapstructure:"ca_file" yaml:"ca_file,omitempty"`
	// CertFile and KeyFile, when both set, present a client certificate.
	CertFile string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	// InsecureSkipVerify disables server verification. Development only.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// NewClientTLSConfig builds a tls.Config for dialing internal services.
func NewClientTLSConfig(cfg *ClientConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pool, err := LoadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, fmt.Errorf("client certificate requires both cert_file and key_file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
