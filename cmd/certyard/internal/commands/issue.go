package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfeidau/certyard/internal/emit"
	"github.com/wolfeidau/certyard/internal/encrypt"
	"github.com/wolfeidau/certyard/internal/logger"
	"github.com/wolfeidau/certyard/internal/pki"
	"github.com/wolfeidau/certyard/internal/truststore"
)

// IssueCmd runs the full pipeline: CA bootstrap/reuse, leaf issuance,
// selected artifact emitters, optional trust install, optional at-rest
// encryption.
type IssueCmd struct {
	CN      string   `help:"Certificate common name" required:""`
	SANs    []string `name:"san" help:"Subject alternative name (IP addresses are auto-detected, everything else is DNS)"`
	Org     string   `help:"Subject organization"`
	OU      string   `help:"Subject organizational unit"`
	Country string   `help:"Subject country code"`
	Profile string   `help:"Issuance profile" default:"server" enum:"server,client,both"`
	Days    int      `help:"Leaf certificate validity in days" default:"825"`

	OutputDir string `help:"Output directory for keys and certificates" default:"./certs"`
	CACn      string `name:"ca-cn" help:"CA common name, used only when bootstrapping a new CA" default:"certyard development CA"`
	CAOrg     string `name:"ca-org" help:"CA organization, used only when bootstrapping a new CA" default:"certyard"`
	CADays    int    `name:"ca-days" help:"CA certificate validity in days" default:"3650"`

	SecretName      string `help:"Emit a Kubernetes TLS secret manifest with this name"`
	SecretNamespace string `help:"Namespace for the secret manifest" default:"default"`
	SecretOut       string `help:"Path for the secret manifest (default: <output-dir>/<secret-name>-tls.yaml)"`
	BundleDir       string `help:"Emit a proxy bundle (fullchain.pem, privkey.pem) into this directory"`

	InstallTrust string `help:"Install the CA certificate into a trust store (system, browser)"`

	Encrypt        bool   `help:"Encrypt emitted artifacts at rest"`
	Recipients     string `help:"Age recipients for artifact encryption" env:"CERTYARD_AGE_RECIPIENTS"`
	RecipientsFile string `help:"Age recipients file (default: <output-dir>/age-recipients.txt)"`
}

func (c *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	profile, err := pki.ParseProfile(c.Profile)
	if err != nil {
		return err
	}

	identity := pki.Identity{
		CommonName:   c.CN,
		Organization: c.Org,
		OrgUnit:      c.OU,
		Country:      c.Country,
	}
	for _, san := range c.SANs {
		identity.SANs = append(identity.SANs, pki.ParseSAN(san))
	}

	// Reject invalid requests before any key material exists.
	if err := pki.ValidateRequest(identity, profile); err != nil {
		return err
	}

	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ca, err := pki.EnsureCA(pki.CAConfig{
		KeyPath:      filepath.Join(c.OutputDir, pki.CAKeyFile),
		CertPath:     filepath.Join(c.OutputDir, pki.CACertFile),
		CommonName:   c.CACn,
		Organization: c.CAOrg,
		Validity:     time.Duration(c.CADays) * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve CA: %w", err)
	}
	log.Info().
		Str("cn", ca.Cert.Subject.CommonName).
		Bool("created", ca.CreatedCert).
		Msg("CA resolved")

	issuer := &pki.Issuer{
		CA:        ca,
		OutputDir: c.OutputDir,
		Validity:  time.Duration(c.Days) * 24 * time.Hour,
	}
	issued, err := issuer.Issue(identity, profile)
	if err != nil {
		return fmt.Errorf("failed to issue leaf certificate: %w", err)
	}
	log.Info().
		Str("cn", c.CN).
		Str("profile", string(profile)).
		Str("cert", issued.CertPath).
		Msg("leaf certificate issued")

	var artifacts []string

	if c.SecretName != "" {
		out := c.SecretOut
		if out == "" {
			out = filepath.Join(c.OutputDir, c.SecretName+"-tls.yaml")
		}
		if err := emit.WriteTLSSecret(out, c.SecretName, c.SecretNamespace,
			issued.CertPath, issued.KeyPath, ca.CertPath); err != nil {
			return fmt.Errorf("failed to emit secret manifest: %w", err)
		}
		log.Info().Str("manifest", out).Msg("secret manifest written")
		artifacts = append(artifacts, out)
	}

	if c.BundleDir != "" {
		chainPath, keyPath, err := emit.WriteBundle(c.BundleDir,
			issued.CertPath, issued.KeyPath, ca.CertPath)
		if err != nil {
			return fmt.Errorf("failed to emit bundle: %w", err)
		}
		log.Info().Str("chain", chainPath).Str("key", keyPath).Msg("bundle written")
		artifacts = append(artifacts, chainPath, keyPath)
	}

	if c.InstallTrust != "" {
		target, err := truststore.ParseTarget(c.InstallTrust)
		if err != nil {
			return err
		}
		// Fire and forget: a trust install failure is reported but
		// never blocks emitters or encryption.
		inst := truststore.NewPlatformInstaller(log)
		if err := truststore.Install(ctx, inst, target, ca.CertPath); err != nil {
			log.Warn().Err(err).Str("target", c.InstallTrust).Msg("trust store install failed")
		} else {
			log.Info().Str("target", c.InstallTrust).Msg("CA installed into trust store")
		}
	}

	if c.Encrypt {
		if len(artifacts) == 0 {
			artifacts = []string{issued.KeyPath, issued.CertPath}
		}
		cfg, err := encrypt.LoadConfig(c.Recipients, c.recipientsFilePath())
		if err != nil {
			return fmt.Errorf("failed to resolve encryption configuration: %w", err)
		}
		if err := encrypt.New(cfg, log).Run(artifacts); err != nil {
			return fmt.Errorf("failed to encrypt artifacts: %w", err)
		}
	}

	return nil
}

func (c *IssueCmd) recipientsFilePath() string {
	if c.RecipientsFile != "" {
		return c.RecipientsFile
	}
	return filepath.Join(c.OutputDir, encrypt.RecipientsFileName)
}
