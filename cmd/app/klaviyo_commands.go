package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/klaviyo-relay/cmd/app/commands"
	"github.com/allisson/klaviyo-relay/internal/app"
)

func getKlaviyoCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "delete-profile",
			Usage: "Queue a privacy deletion of a Klaviyo profile",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "email",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Email of the profile to delete",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					relayUseCase, err := container.RelayUseCase()
					if err != nil {
						return err
					}
					return commands.RunDeleteProfile(
						ctx,
						relayUseCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("email"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "sync-catalog",
			Usage: "Queue a bulk catalog sync from a JSON document ({\"products\": [...]})",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "file",
					Aliases: []string{"i"},
					Value:   "-",
					Usage:   "Path to the catalog document, '-' for stdin",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				in, closeInput, err := openInput(cmd.String("file"))
				if err != nil {
					return err
				}
				defer closeInput()

				return withContainer(ctx, func(container *app.Container) error {
					relayUseCase, err := container.RelayUseCase()
					if err != nil {
						return err
					}
					return commands.RunSyncCatalog(
						ctx,
						relayUseCase,
						container.Logger(),
						in,
						commands.DefaultIO().Writer,
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "list-metrics",
			Usage: "List the metrics known to the Klaviyo account",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					client, err := container.KlaviyoClient()
					if err != nil {
						return err
					}
					return commands.RunListMetrics(
						ctx,
						client,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("format"),
					)
				})
			},
		},
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
