// Package encrypt produces encrypted siblings of plaintext artifacts.
// Encryption is strictly additive: the plaintext always exists first
// and is never mutated or deleted.
package encrypt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/rs/zerolog"
)

const (
	// RecipientsEnv names the environment variable holding a comma or
	// whitespace separated list of age recipients.
	RecipientsEnv = "CERTYARD_AGE_RECIPIENTS"

	// RecipientsFileName is the well-known recipients file inside the
	// output directory, one recipient per line.
	RecipientsFileName = "age-recipients.txt"

	// Suffix names an encrypted sibling next to its plaintext.
	Suffix = ".age"
)

// ErrNoRecipients is returned when neither the environment nor the
// recipients file yields a recipient.
var ErrNoRecipients = errors.New("no encryption recipients configured")

// Config is the resolved encryption backend configuration. It is built
// once at stage entry; nothing below this reads the environment.
type Config struct {
	Recipients []age.Recipient
}

// LoadConfig resolves recipients from the environment value (already
// read by the caller) or, when that is empty, from the recipients
// file. Resolution failure is a precondition error raised before any
// per-file work.
func LoadConfig(envSpec, recipientsFile string) (*Config, error) {
	if envSpec != "" {
		recipients, err := parseRecipientList(strings.FieldsFunc(envSpec, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}))
		if err != nil {
			return nil, err
		}
		return &Config{Recipients: recipients}, nil
	}

	f, err := os.Open(recipientsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s is unset and %s does not exist", ErrNoRecipients, RecipientsEnv, recipientsFile)
		}
		return nil, fmt.Errorf("failed to open recipients file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipients file: %w", err)
	}

	recipients, err := parseRecipientList(lines)
	if err != nil {
		return nil, err
	}
	return &Config{Recipients: recipients}, nil
}

func parseRecipientList(values []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(values))
	for _, v := range values {
		r, err := age.ParseX25519Recipient(v)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", v, err)
		}
		recipients = append(recipients, r)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return recipients, nil
}

// Pipeline encrypts artifacts for a resolved configuration.
type Pipeline struct {
	cfg *Config
	log zerolog.Logger
}

// New creates a Pipeline. cfg must come from LoadConfig.
func New(cfg *Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Run encrypts each path in order. The first failure aborts the
// remaining paths; plaintext artifacts and siblings already written
// earlier in the run are left as they are.
func (p *Pipeline) Run(paths []string) error {
	for _, path := range paths {
		out, err := p.EncryptFile(path)
		if err != nil {
			return err
		}
		p.log.Info().Str("artifact", path).Str("encrypted", out).Msg("encrypted artifact")
	}
	return nil
}

// EncryptFile writes an encrypted sibling of path at path+Suffix and
// returns the sibling's path. The plaintext must already exist.
func (p *Pipeline) EncryptFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat artifact %s: %w", path, err)
	}

	outPath := path + Suffix
	dst, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer dst.Close()

	w, err := age.Encrypt(dst, p.cfg.Recipients...)
	if err != nil {
		return "", fmt.Errorf("failed to start encryption of %s: %w", path, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return "", fmt.Errorf("failed to encrypt %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize encryption of %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	return outPath, nil
}
