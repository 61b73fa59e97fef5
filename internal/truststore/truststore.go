// Package truststore installs a CA certificate into OS or browser
// trust stores. Installation is a fire-and-forget side effect: the
// outcome is reported to the caller but never gates the rest of the
// pipeline.
package truststore

import (
	"context"
	"errors"
	"fmt"
)

// Target selects a trust store class.
type Target string

const (
	TargetSystem  Target = "system"
	TargetBrowser Target = "browser"
)

// ErrUnknownTarget is returned for a target name outside the known
// classes.
var ErrUnknownTarget = errors.New("unknown trust target")

// ParseTarget resolves a trust target name.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetSystem:
		return TargetSystem, nil
	case TargetBrowser:
		return TargetBrowser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

// Installer is the capability the pipeline depends on. Implementations
// are platform-specific adapters.
type Installer interface {
	// InstallSystem adds the CA certificate to the local machine
	// trust store. Typically requires elevated privileges.
	InstallSystem(ctx context.Context, caCertPath string) error

	// InstallBrowser adds the CA certificate to the browser (NSS)
	// trust store of the current user.
	InstallBrowser(ctx context.Context, caCertPath string) error
}

// Install dispatches to the installer method for target. The target is
// validated before any side effect.
func Install(ctx context.Context, inst Installer, target Target, caCertPath string) error {
	switch target {
	case TargetSystem:
		return inst.InstallSystem(ctx, caCertPath)
	case TargetBrowser:
		return inst.InstallBrowser(ctx, caCertPath)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}
