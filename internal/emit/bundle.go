package emit

import (
	"fmt"
	"os"
	"path/filepath"
)

// Bundle file names follow the layout reverse proxies already know how
// to consume.
const (
	ChainFile = "fullchain.pem"
	KeyFile   = "privkey.pem"
)

// WriteBundle writes a proxy-ready bundle into dir: a chain file with
// the leaf certificate first and the CA certificate second, and a
// separate copy of the leaf key. The directory is created if absent.
func WriteBundle(dir, certPath, keyPath, caCertPath string) (chainPath, keyOutPath string, err error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read leaf certificate: %w", err)
	}
	caPEM, err := os.ReadFile(caCertPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read CA certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read leaf key: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create bundle directory: %w", err)
	}

	// Leaf first, CA second. Consumers parse the chain in order.
	chain := make([]byte, 0, len(certPEM)+len(caPEM))
	chain = append(chain, certPEM...)
	chain = append(chain, caPEM...)

	chainPath = filepath.Join(dir, ChainFile)
	if err := os.WriteFile(chainPath, chain, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write chain file: %w", err)
	}

	keyOutPath = filepath.Join(dir, KeyFile)
	if err := os.WriteFile(keyOutPath, keyPEM, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write key file: %w", err)
	}

	return chainPath, keyOutPath, nil
}
