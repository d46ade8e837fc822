// Package tlsutil holds the TLS plumbing shared by the ingress gateway and
// the registry's internal surface: mutual-TLS server configs, client
// fingerprinting, and CRL handling.
package tlsutil

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// ServerConfig describes the certificate material for a TLS listener.
type ServerConfig struct {
	CertFile string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	// CAFile, when set, enables mutual TLS: client certificates must chain
	// to this CA and are required on every connection.
	CAFile string `mapstructure:"ca_file" yaml:"ca_file,omitempty"`
	// CRLFile, when set, is checked during the handshake so revoked
	// certificates are rejected before any request is read.
	CRLFile string `mapstructure:"crl_file" yaml:"crl_file,omitempty"`
}

// NewServerTLSConfig builds a tls.Config for the gateway's mTLS listener.
// When cfg.CAFile is empty the listener runs plain server-side TLS.
func NewServerTLSConfig(cfg *ServerConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CAFile == "" {
		return tlsCfg, nil
	}

	caPool, err := LoadCAPool(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	tlsCfg.ClientCAs = caPool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert

	if cfg.CRLFile != "" {
		crl, err := LoadCRL(cfg.CRLFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.VerifyPeerCertificate = rejectRevoked(crl)
	}

	return tlsCfg, nil
}

// LoadCAPool reads a PEM bundle into a certificate pool.
func LoadCAPool(path string) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", path)
	}
	return pool, nil
}

// LoadCRL reads a DER or PEM encoded certificate revocation list.
func LoadCRL(path string) (*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CRL: %w", err)
	}
	crl, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	return crl, nil
}

// rejectRevoked returns a handshake callback that fails the connection when
// the presented leaf certificate's serial appears in the CRL.
func rejectRevoked(crl *x509.RevocationList) func([][]byte, [][]*x509.Certificate) error {
	revoked := make(map[string]struct{}, len(crl.RevokedCertificateEntries))
	for _, entry := range crl.RevokedCertificateEntries {
		revoked[entry.SerialNumber.String()] = struct{}{}
	}

	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no client certificate presented")
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse client certificate: %w", err)
		}
		if _, ok := revoked[leaf.SerialNumber.String()]; ok {
			return fmt.Errorf("client certificate %s is revoked", leaf.SerialNumber)
		}
		return nil
	}
}

// Fingerprint returns the lowercase hex SHA-256 digest of the certificate's
// DER encoding. This is the identity key stored next to each client record.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// PeerIdentity extracts the client identity from a completed handshake:
// the certificate fingerprint and the common name.
func PeerIdentity(state *tls.ConnectionState) (fingerprint, commonName string, err error) {
	if state == nil || len(state.PeerCertificates) == 0 {
		return "", "", fmt.Errorf("no peer certificate in connection state")
	}
	leaf := state.PeerCertificates[0]
	return Fingerprint(leaf), leaf.Subject.CommonName, nil
}

// ExpiresWithin reports whether the certificate expires inside the window.
func ExpiresWithin(cert *x509.Certificate, window time.Duration) bool {
	return time.Now().Add(window).After(cert.NotAfter)
}
