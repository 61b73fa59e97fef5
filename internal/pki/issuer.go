package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultLeafValidity matches the maximum lifetime current browsers
// accept for server certificates.
const DefaultLeafValidity = 825 * 24 * time.Hour

// Issuer signs leaf certificates with a resolved CA.
type Issuer struct {
	CA        *CA
	OutputDir string
	Validity  time.Duration
}

// IssuedPaths are the files a successful issuance leaves in the output
// directory.
type IssuedPaths struct {
	KeyPath  string
	CSRPath  string
	CertPath string
}

// Issue generates a leaf key, builds a CSR for the identity, and signs
// it with the CA, applying the profile's extensions to the issued
// certificate. A CSR's self-asserted extensions are never trusted; the
// template built from the profile is authoritative.
//
// All outputs are staged in a scratch directory inside OutputDir and
// moved into place only once every step has succeeded, so a failed
// issuance leaves no partial leaf state behind. The scratch directory
// is removed on every exit path.
func (iss *Issuer) Issue(id Identity, profile Profile) (IssuedPaths, error) {
	validity := iss.Validity
	if validity == 0 {
		validity = DefaultLeafValidity
	}

	// Validation runs before any key material is generated.
	template, err := LeafTemplate(id, profile, validity)
	if err != nil {
		return IssuedPaths{}, err
	}

	staging := filepath.Join(iss.OutputDir, ".issue-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0700); err != nil {
		return IssuedPaths{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	key, err := rsa.GenerateKey(rand.Reader, LeafKeyBits)
	if err != nil {
		return IssuedPaths{}, fmt.Errorf("failed to generate leaf key: %w", err)
	}
	if err := WriteKey(filepath.Join(staging, LeafKeyFile), key); err != nil {
		return IssuedPaths{}, err
	}

	csrDER, err := createCSR(id, key)
	if err != nil {
		return IssuedPaths{}, err
	}
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER})
	if err := os.WriteFile(filepath.Join(staging, LeafCSRFile), csrPEM, 0644); err != nil {
		return IssuedPaths{}, fmt.Errorf("failed to write CSR: %w", err)
	}

	csr, err := x509.ParseCertificateRequest(csrDER)
	if err != nil {
		return IssuedPaths{}, fmt.Errorf("failed to parse CSR: %w", err)
	}
	if err := csr.CheckSignature(); err != nil {
		return IssuedPaths{}, fmt.Errorf("CSR signature check failed: %w", err)
	}

	der, err := x509.CreateCertificate(rand.Reader, template, iss.CA.Cert, csr.PublicKey, iss.CA.Key)
	if err != nil {
		return IssuedPaths{}, fmt.Errorf("failed to sign leaf certificate: %w", err)
	}
	if err := WriteCert(filepath.Join(staging, LeafCertFile), der); err != nil {
		return IssuedPaths{}, err
	}

	paths := IssuedPaths{
		KeyPath:  filepath.Join(iss.OutputDir, LeafKeyFile),
		CSRPath:  filepath.Join(iss.OutputDir, LeafCSRFile),
		CertPath: filepath.Join(iss.OutputDir, LeafCertFile),
	}
	for _, move := range []struct{ from, to string }{
		{filepath.Join(staging, LeafKeyFile), paths.KeyPath},
		{filepath.Join(staging, LeafCSRFile), paths.CSRPath},
		{filepath.Join(staging, LeafCertFile), paths.CertPath},
	} {
		if err := os.Rename(move.from, move.to); err != nil {
			return IssuedPaths{}, fmt.Errorf("failed to move %s into place: %w", filepath.Base(move.to), err)
		}
	}

	return paths, nil
}

func createCSR(id Identity, key *rsa.PrivateKey) ([]byte, error) {
	dnsNames, ipAddresses, err := id.splitSANs()
	if err != nil {
		return nil, err
	}

	req := &x509.CertificateRequest{
		Subject:     id.Subject(),
		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, req, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSR: %w", err)
	}
	return der, nil
}
