package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// generateTestCert creates a self-signed certificate and writes the PEM
// pair into dir, returning the parsed certificate.
func generateTestCert(t *testing.T, dir, commonName string, notAfter time.Time) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(filepath.Join(dir, "tls.crt"), certPEM, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tls.key"), keyPEM, 0600); err != nil {
		t.Fatal(err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	cert := generateTestCert(t, dir, "client_alpha", time.Now().Add(24*time.Hour))

	fp := Fingerprint(cert)
	if len(fp) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(fp))
	}
	if fp != Fingerprint(cert) {
		t.Error("fingerprint must be deterministic")
	}

	other := generateTestCert(t, t.TempDir(), "client_beta", time.Now().Add(24*time.Hour))
	if fp == Fingerprint(other) {
		t.Error("distinct certificates must not collide")
	}
}

func TestPeerIdentity(t *testing.T) {
	dir := t.TempDir()
	cert := generateTestCert(t, dir, "client_alpha", time.Now().Add(24*time.Hour))

	t.Run("extracts fingerprint and CN", func(t *testing.T) {
		state := &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
		fp, cn, err := PeerIdentity(state)
		if err != nil {
			t.Fatal(err)
		}
		if cn != "client_alpha" {
			t.Errorf("expected CN client_alpha, got %q", cn)
		}
		if fp != Fingerprint(cert) {
			t.Error("fingerprint mismatch")
		}
	})

	t.Run("no peer certificate", func(t *testing.T) {
		_, _, err := PeerIdentity(&tls.ConnectionState{})
		if err == nil {
			t.Error("expected error for missing peer certificate")
		}
	})
}

func TestNewServerTLSConfig(t *testing.T) {
	dir := t.TempDir()
	generateTestCert(t, dir, "registry.internal", time.Now().Add(24*time.Hour))

	t.Run("plain TLS without CA", func(t *testing.T) {
		cfg, err := NewServerTLSConfig(&ServerConfig{
			CertFile: filepath.Join(dir, "tls.crt"),
			KeyFile:  filepath.Join(dir, "tls.key"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ClientAuth != tls.NoClientCert {
			t.Error("expected no client cert requirement without CA")
		}
	})

	t.Run("mTLS with CA", func(t *testing.T) {
		cfg, err := NewServerTLSConfig(&ServerConfig{
			CertFile: filepath.Join(dir, "tls.crt"),
			KeyFile:  filepath.Join(dir, "tls.key"),
			CAFile:   filepath.Join(dir, "tls.crt"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
			t.Error("expected client certificates to be required")
		}
	})

	t.Run("missing cert file", func(t *testing.T) {
		_, err := NewServerTLSConfig(&ServerConfig{
			CertFile: filepath.Join(dir, "missing.crt"),
			KeyFile:  filepath.Join(dir, "missing.key"),
		})
		if err == nil {
			t.Error("expected error for missing certificate")
		}
	})
}

func TestNewClientTLSConfig(t *testing.T) {
	dir := t.TempDir()
	generateTestCert(t, dir, "gateway.internal", time.Now().Add(24*time.Hour))

	t.Run("pinned CA and client certificate", func(t *testing.T) {
		cfg, err := NewClientTLSConfig(&ClientConfig{
			CAFile:   filepath.Join(dir, "tls.crt"),
			CertFile: filepath.Join(dir, "tls.crt"),
			KeyFile:  filepath.Join(dir, "tls.key"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.RootCAs == nil {
			t.Error("expected pinned root CAs")
		}
		if len(cfg.Certificates) != 1 {
			t.Error("expected a client certificate")
		}
	})

	t.Run("cert without key fails", func(t *testing.T) {
		_, err := NewClientTLSConfig(&ClientConfig{
			CertFile: filepath.Join(dir, "tls.crt"),
		})
		if err == nil {
			t.Error("expected error when key_file is missing")
		}
	})
}

func TestExpiresWithin(t *testing.T) {
	dir := t.TempDir()
	soon := generateTestCert(t, dir, "soon", time.Now().Add(48*time.Hour))

	if !ExpiresWithin(soon, 7*24*time.Hour) {
		t.Error("certificate expiring in 2 days should be inside a 7 day window")
	}
	if ExpiresWithin(soon, time.Hour) {
		t.Error("certificate expiring in 2 days should be outside a 1 hour window")
	}
}
