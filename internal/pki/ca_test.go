package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCAConfig(dir string) CAConfig {
	return CAConfig{
		KeyPath:      filepath.Join(dir, CAKeyFile),
		CertPath:     filepath.Join(dir, CACertFile),
		CommonName:   "test CA",
		Organization: "certyard",
		Validity:     24 * time.Hour,
	}
}

func TestEnsureCA(t *testing.T) {
	t.Run("bootstraps a new CA", func(t *testing.T) {
		cfg := testCAConfig(t.TempDir())

		ca, err := EnsureCA(cfg)
		require.NoError(t, err)

		assert.True(t, ca.CreatedKey)
		assert.True(t, ca.CreatedCert)
		assert.Equal(t, "test CA", ca.Cert.Subject.CommonName)
		assert.True(t, ca.Cert.IsCA)
		assert.Equal(t, CAKeyBits, ca.Key.N.BitLen())

		// Self-signed and verifiable against itself.
		require.NoError(t, ca.Cert.CheckSignatureFrom(ca.Cert))

		info, err := os.Stat(cfg.KeyPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("reuse never modifies existing files", func(t *testing.T) {
		cfg := testCAConfig(t.TempDir())

		_, err := EnsureCA(cfg)
		require.NoError(t, err)

		keyBefore, err := os.ReadFile(cfg.KeyPath)
		require.NoError(t, err)
		certBefore, err := os.ReadFile(cfg.CertPath)
		require.NoError(t, err)

		// A different requested CN must not replace the CA.
		cfg.CommonName = "some other CA"
		ca, err := EnsureCA(cfg)
		require.NoError(t, err)

		assert.False(t, ca.CreatedKey)
		assert.False(t, ca.CreatedCert)
		assert.Equal(t, "test CA", ca.Cert.Subject.CommonName)

		keyAfter, err := os.ReadFile(cfg.KeyPath)
		require.NoError(t, err)
		certAfter, err := os.ReadFile(cfg.CertPath)
		require.NoError(t, err)
		assert.Equal(t, keyBefore, keyAfter)
		assert.Equal(t, certBefore, certAfter)
	})

	t.Run("regenerates only the missing certificate", func(t *testing.T) {
		cfg := testCAConfig(t.TempDir())

		first, err := EnsureCA(cfg)
		require.NoError(t, err)

		require.NoError(t, os.Remove(cfg.CertPath))

		second, err := EnsureCA(cfg)
		require.NoError(t, err)

		assert.False(t, second.CreatedKey)
		assert.True(t, second.CreatedCert)
		// The new certificate is issued for the original key.
		assert.True(t, first.Key.PublicKey.Equal(second.Cert.PublicKey))
	})

	t.Run("rejects a certificate issued for a different key", func(t *testing.T) {
		cfg := testCAConfig(t.TempDir())

		_, err := EnsureCA(cfg)
		require.NoError(t, err)

		// Replace the key with a fresh one the certificate was not
		// issued for.
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		require.NoError(t, WriteKey(cfg.KeyPath, otherKey))

		_, err = EnsureCA(cfg)
		assert.ErrorIs(t, err, ErrCAMismatch)
	})

	t.Run("CA certificate carries signing usage", func(t *testing.T) {
		cfg := testCAConfig(t.TempDir())

		ca, err := EnsureCA(cfg)
		require.NoError(t, err)

		assert.NotZero(t, ca.Cert.KeyUsage&x509.KeyUsageCertSign)
	})
}
