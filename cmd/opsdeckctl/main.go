package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/opsdeck/opsdeck/cmd/opsdeckctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Migrate commands.MigrateCmd `cmd:"" help:"Prepare the store schema"`
		Seed    commands.SeedCmd    `cmd:"" help:"Load the sample data set into an organization"`
		Token   commands.TokenCmd   `cmd:"" help:"Issue an access token for a user"`
		Quote   commands.QuoteCmd   `cmd:"" help:"Draft a sales quote with the configured AI provider"`
		Debug   bool                `help:"Enable debug logging."`
		Version kong.VersionFlag
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Description("Operations tooling for the OpsDeck dashboard."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Out: os.Stdout})
	cmd.FatalIfErrorf(err)
}
