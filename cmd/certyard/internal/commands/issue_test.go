package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/wolfeidau/certyard/internal/encrypt"
	"github.com/wolfeidau/certyard/internal/pki"
)

func TestIssueCmd(t *testing.T) {
	globals := &Globals{Version: "test"}

	t.Run("full pipeline with secret and bundle", func(t *testing.T) {
		outputDir := t.TempDir()
		bundleDir := filepath.Join(t.TempDir(), "bundle")

		identity, err := age.GenerateX25519Identity()
		require.NoError(t, err)

		cmd := &IssueCmd{
			CN:              "example.local",
			SANs:            []string{"example.local", "127.0.0.1"},
			Profile:         "server",
			Days:            825,
			OutputDir:       outputDir,
			CACn:            "certyard development CA",
			CAOrg:           "certyard",
			CADays:          3650,
			SecretName:      "web",
			SecretNamespace: "edge",
			BundleDir:       bundleDir,
			Encrypt:         true,
			Recipients:      identity.Recipient().String(),
		}
		require.NoError(t, cmd.Run(context.Background(), globals))

		// Leaf material and CSR are persisted.
		cert, err := pki.LoadCertificate(filepath.Join(outputDir, pki.LeafCertFile))
		require.NoError(t, err)
		assert.Equal(t, "example.local", cert.Subject.CommonName)
		assert.Equal(t, []string{"example.local"}, cert.DNSNames)
		require.Len(t, cert.IPAddresses, 1)
		assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())
		_, err = os.Stat(filepath.Join(outputDir, pki.LeafCSRFile))
		require.NoError(t, err)

		// Secret manifest decodes to the on-disk material.
		manifest, err := os.ReadFile(filepath.Join(outputDir, "web-tls.yaml"))
		require.NoError(t, err)
		var secret corev1.Secret
		require.NoError(t, yaml.Unmarshal(manifest, &secret))
		assert.Equal(t, "web", secret.Name)
		assert.Equal(t, "edge", secret.Namespace)

		leafPEM, err := os.ReadFile(filepath.Join(outputDir, pki.LeafCertFile))
		require.NoError(t, err)
		assert.Equal(t, leafPEM, secret.Data[corev1.TLSCertKey])

		// Bundle files exist with encrypted siblings.
		for _, name := range []string{"fullchain.pem", "privkey.pem"} {
			_, err := os.Stat(filepath.Join(bundleDir, name))
			require.NoError(t, err)
			_, err = os.Stat(filepath.Join(bundleDir, name) + encrypt.Suffix)
			require.NoError(t, err)
		}
		_, err = os.Stat(filepath.Join(outputDir, "web-tls.yaml") + encrypt.Suffix)
		require.NoError(t, err)
	})

	t.Run("SAN-less server issuance leaves no leaf key", func(t *testing.T) {
		outputDir := t.TempDir()

		cmd := &IssueCmd{
			CN:        "example.local",
			Profile:   "both",
			Days:      825,
			OutputDir: outputDir,
			CACn:      "certyard development CA",
			CADays:    3650,
		}
		err := cmd.Run(context.Background(), globals)
		require.Error(t, err)
		assert.ErrorIs(t, err, pki.ErrSANRequired)

		_, statErr := os.Stat(filepath.Join(outputDir, pki.LeafKeyFile))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("re-run with different CA CN keeps the original CA", func(t *testing.T) {
		outputDir := t.TempDir()

		base := IssueCmd{
			CN:        "example.local",
			SANs:      []string{"example.local"},
			Profile:   "server",
			Days:      825,
			OutputDir: outputDir,
			CACn:      "original CA",
			CADays:    3650,
		}
		first := base
		require.NoError(t, first.Run(context.Background(), globals))

		caBefore, err := os.ReadFile(filepath.Join(outputDir, pki.CACertFile))
		require.NoError(t, err)

		second := base
		second.CACn = "replacement CA"
		require.NoError(t, second.Run(context.Background(), globals))

		caAfter, err := os.ReadFile(filepath.Join(outputDir, pki.CACertFile))
		require.NoError(t, err)
		assert.Equal(t, caBefore, caAfter)

		caCert, err := pki.LoadCertificate(filepath.Join(outputDir, pki.CACertFile))
		require.NoError(t, err)
		assert.Equal(t, "original CA", caCert.Subject.CommonName)
	})

	t.Run("encryption without recipients fails the run", func(t *testing.T) {
		outputDir := t.TempDir()

		cmd := &IssueCmd{
			CN:        "example.local",
			SANs:      []string{"example.local"},
			Profile:   "server",
			Days:      825,
			OutputDir: outputDir,
			CACn:      "certyard development CA",
			CADays:    3650,
			Encrypt:   true,
		}
		err := cmd.Run(context.Background(), globals)
		require.Error(t, err)
		assert.ErrorIs(t, err, encrypt.ErrNoRecipients)

		// Issuance output from earlier stages is kept.
		_, statErr := os.Stat(filepath.Join(outputDir, pki.LeafCertFile))
		assert.NoError(t, statErr)
	})

	t.Run("unknown trust target fails before any install", func(t *testing.T) {
		outputDir := t.TempDir()

		cmd := &IssueCmd{
			CN:           "example.local",
			SANs:         []string{"example.local"},
			Profile:      "server",
			Days:         825,
			OutputDir:    outputDir,
			CACn:         "certyard development CA",
			CADays:       3650,
			InstallTrust: "keychain",
		}
		err := cmd.Run(context.Background(), globals)
		require.Error(t, err)
	})
}
