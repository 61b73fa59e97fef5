package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrCAMismatch is returned when the CA certificate on disk was not
// issued for the CA key on disk.
var ErrCAMismatch = errors.New("CA certificate does not match CA key")

// DefaultCAValidity is ten years, reflecting the long trust lifetime
// of a local development root.
const DefaultCAValidity = 3650 * 24 * time.Hour

// CAConfig describes where the CA lives and how to bootstrap it when
// absent.
type CAConfig struct {
	KeyPath      string
	CertPath     string
	CommonName   string
	Organization string
	Validity     time.Duration
}

// CA is a loaded root key/certificate pair.
type CA struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate

	KeyPath  string
	CertPath string

	// CreatedKey and CreatedCert report whether this invocation
	// generated the corresponding file.
	CreatedKey  bool
	CreatedCert bool
}

// EnsureCA loads the CA at the configured paths, generating whichever
// of the key and certificate is absent. An existing file is never
// rewritten: re-running with a different CommonName leaves the CA
// untouched. A caller wanting a different root must point at
// different paths.
func EnsureCA(cfg CAConfig) (*CA, error) {
	if cfg.Validity == 0 {
		cfg.Validity = DefaultCAValidity
	}

	ca := &CA{KeyPath: cfg.KeyPath, CertPath: cfg.CertPath}

	key, err := loadOrCreateCAKey(cfg.KeyPath, ca)
	if err != nil {
		return nil, err
	}
	ca.Key = key

	cert, err := loadOrCreateCACert(cfg, key, ca)
	if err != nil {
		return nil, err
	}
	ca.Cert = cert

	// A reused certificate must have been issued for this key;
	// silently signing with a mismatched pair would produce chains
	// nothing can verify.
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return nil, fmt.Errorf("%w (%s, %s)", ErrCAMismatch, cfg.KeyPath, cfg.CertPath)
	}

	return ca, nil
}

func loadOrCreateCAKey(path string, ca *CA) (*rsa.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadKey(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat CA key: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, CAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	if err := WriteKey(path, key); err != nil {
		return nil, err
	}
	ca.CreatedKey = true
	return key, nil
}

func loadOrCreateCACert(cfg CAConfig, key *rsa.PrivateKey, ca *CA) (*x509.Certificate, error) {
	if _, err := os.Stat(cfg.CertPath); err == nil {
		return LoadCertificate(cfg.CertPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat CA certificate: %w", err)
	}

	serial, err := newSerialNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               Identity{CommonName: cfg.CommonName, Organization: cfg.Organization}.Subject(),
		NotBefore:             now.Add(-1 * time.Hour),
		NotAfter:              now.Add(cfg.Validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	if err := WriteCert(cfg.CertPath, der); err != nil {
		return nil, err
	}
	ca.CreatedCert = true

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated CA certificate: %w", err)
	}
	return cert, nil
}
