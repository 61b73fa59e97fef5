package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Key sizes reflect trust lifetime: the CA key outlives every leaf it
// signs, so it gets the larger modulus.
const (
	CAKeyBits   = 4096
	LeafKeyBits = 2048
)

// Default file names inside the output directory.
const (
	CAKeyFile    = "ca-key.pem"
	CACertFile   = "ca-cert.pem"
	LeafKeyFile  = "leaf-key.pem"
	LeafCSRFile  = "leaf.csr"
	LeafCertFile = "leaf-cert.pem"
)

// EncodeKeyPEM marshals a private key as PKCS#8 PEM.
func EncodeKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// WriteKey writes a private key to path with 0600 permissions.
func WriteKey(path string, key *rsa.PrivateKey) error {
	keyPEM, err := EncodeKeyPEM(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// LoadKey reads a PEM-encoded RSA private key from path. PKCS#8 is the
// format this tool writes; PKCS#1 is accepted for keys produced by
// other tooling.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode key PEM in %s", path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key in %s is not RSA", path)
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return rsaKey, nil
}

// EncodeCertPEM wraps DER certificate bytes in a PEM block.
func EncodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// WriteCert writes a DER certificate to path as PEM.
func WriteCert(path string, der []byte) error {
	if err := os.WriteFile(path, EncodeCertPEM(der), 0644); err != nil {
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	return nil
}

// LoadCertificate reads a PEM-encoded X.509 certificate from path.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate in %s: %w", path, err)
	}
	return cert, nil
}
