package truststore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

// PlatformInstaller shells out to the host's trust tooling. The
// commands are the same ones an operator would run by hand, so a
// failure message points straight at the fix.
type PlatformInstaller struct {
	log zerolog.Logger
}

// NewPlatformInstaller creates an Installer for the current OS.
func NewPlatformInstaller(log zerolog.Logger) *PlatformInstaller {
	return &PlatformInstaller{log: log}
}

func (p *PlatformInstaller) InstallSystem(ctx context.Context, caCertPath string) error {
	switch runtime.GOOS {
	case "linux":
		return p.installLinuxSystem(ctx, caCertPath)
	case "darwin":
		return p.run(ctx, "security", "add-trusted-cert", "-d",
			"-k", "/Library/Keychains/System.keychain", caCertPath)
	default:
		return fmt.Errorf("system trust store not supported on %s", runtime.GOOS)
	}
}

func (p *PlatformInstaller) InstallBrowser(ctx context.Context, caCertPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to locate home directory: %w", err)
	}
	nssdb := filepath.Join(home, ".pki", "nssdb")
	return p.run(ctx, "certutil", "-d", "sql:"+nssdb,
		"-A", "-t", "C,,", "-n", "certyard local CA", "-i", caCertPath)
}

func (p *PlatformInstaller) installLinuxSystem(ctx context.Context, caCertPath string) error {
	data, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}

	dest := "/usr/local/share/ca-certificates/certyard-local-ca.crt"
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to copy CA certificate to %s (need root?): %w", dest, err)
	}

	return p.run(ctx, "update-ca-certificates")
}

func (p *PlatformInstaller) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, string(out))
	}
	p.log.Debug().Str("command", name).Msg("trust store command succeeded")
	return nil
}
