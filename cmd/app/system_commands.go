package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/klaviyo-relay/cmd/app/commands"
	"github.com/allisson/klaviyo-relay/internal/app"
	"github.com/allisson/klaviyo-relay/internal/config"
	"github.com/allisson/klaviyo-relay/internal/credentials"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the ingress HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Start the dispatch workers that deliver queued jobs to Klaviyo",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "encrypt-api-key",
			Usage: "Encrypt the Klaviyo API key with a KMS key for KLAVIYO_API_KEY_CIPHERTEXT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "api-key",
					Aliases: []string{"k"},
					Usage:   "Klaviyo private API key (read from stdin when omitted)",
				},
				&cli.StringFlag{
					Name:    "kms-key-uri",
					Aliases: []string{"u"},
					Sources: cli.EnvVars("KMS_KEY_URI"),
					Usage:   "KMS key URI (gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())

				return commands.RunEncryptAPIKey(
					ctx,
					credentials.OpenKeeper,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("api-key"),
					cmd.String("kms-key-uri"),
				)
			},
		},
	}
}
