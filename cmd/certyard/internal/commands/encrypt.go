package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/certyard/internal/encrypt"
	"github.com/wolfeidau/certyard/internal/logger"
)

// EncryptCmd runs the at-rest encryption stage over explicit artifact
// paths, producing an encrypted sibling next to each plaintext.
type EncryptCmd struct {
	Paths          []string `arg:"" help:"Artifact paths to encrypt" type:"existingfile"`
	Recipients     string   `help:"Age recipients for artifact encryption" env:"CERTYARD_AGE_RECIPIENTS"`
	RecipientsFile string   `help:"Age recipients file" default:"./certs/age-recipients.txt"`
}

func (c *EncryptCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := encrypt.LoadConfig(c.Recipients, c.RecipientsFile)
	if err != nil {
		return fmt.Errorf("failed to resolve encryption configuration: %w", err)
	}

	return encrypt.New(cfg, log).Run(c.Paths)
}
