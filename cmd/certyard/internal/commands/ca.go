package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfeidau/certyard/internal/logger"
	"github.com/wolfeidau/certyard/internal/pki"
)

// CACmd bootstraps the CA when absent and prints its details. Existing
// CA files are never modified.
type CACmd struct {
	OutputDir string `help:"Output directory for CA key and certificate" default:"./certs"`
	CN        string `help:"CA common name, used only when bootstrapping a new CA" default:"certyard development CA"`
	Org       string `help:"CA organization, used only when bootstrapping a new CA" default:"certyard"`
	Days      int    `help:"CA certificate validity in days" default:"3650"`
}

func (c *CACmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ca, err := pki.EnsureCA(pki.CAConfig{
		KeyPath:      filepath.Join(c.OutputDir, pki.CAKeyFile),
		CertPath:     filepath.Join(c.OutputDir, pki.CACertFile),
		CommonName:   c.CN,
		Organization: c.Org,
		Validity:     time.Duration(c.Days) * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve CA: %w", err)
	}

	if ca.CreatedCert {
		log.Info().Str("cn", ca.Cert.Subject.CommonName).Msg("CA bootstrapped")
	} else {
		log.Info().Str("cn", ca.Cert.Subject.CommonName).Msg("reusing existing CA")
	}

	fmt.Printf("Common name: %s\n", ca.Cert.Subject.CommonName)
	fmt.Printf("Not after:   %s\n", ca.Cert.NotAfter.Format(time.RFC3339))
	fmt.Printf("Key:         %s\n", ca.KeyPath)
	fmt.Printf("Certificate: %s\n", ca.CertPath)

	return nil
}
