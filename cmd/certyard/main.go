package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/certyard/cmd/certyard/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Issue   commands.IssueCmd   `cmd:"" help:"Issue a leaf certificate signed by the local CA"`
		CA      commands.CACmd      `cmd:"" name:"ca" help:"Bootstrap or inspect the local CA"`
		Encrypt commands.EncryptCmd `cmd:"" help:"Encrypt artifacts at rest"`
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
