// Package emit transforms issued key/cert material into
// consumer-specific artifact formats. Emitters are write-only: they
// regenerate the whole artifact on every call and never read back or
// merge with what is already at the destination.
package emit

import (
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// CACertKey is the conventional key for the CA certificate inside a
// kubernetes.io/tls secret.
const CACertKey = "ca.crt"

// WriteTLSSecret renders a kubernetes.io/tls Secret manifest embedding
// the leaf certificate, leaf key, and CA certificate, and writes it to
// outPath. The Data fields base64-encode during marshaling, per the
// Secret wire format.
func WriteTLSSecret(outPath, name, namespace, certPath, keyPath, caCertPath string) error {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read leaf certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read leaf key: %w", err)
	}
	caPEM, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}

	secret := corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       certPEM,
			corev1.TLSPrivateKeyKey: keyPEM,
			CACertKey:               caPEM,
		},
	}

	manifest, err := yaml.Marshal(&secret)
	if err != nil {
		return fmt.Errorf("failed to marshal secret manifest: %w", err)
	}

	// The manifest embeds the private key, so it gets key-file
	// permissions.
	if err := os.WriteFile(outPath, manifest, 0600); err != nil {
		return fmt.Errorf("failed to write secret manifest: %w", err)
	}
	return nil
}
