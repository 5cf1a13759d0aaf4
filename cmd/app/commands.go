package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/klaviyo-relay/internal/app"
	"github.com/allisson/klaviyo-relay/internal/config"
)

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getQueueCommands()...)
	cmds = append(cmds, getKlaviyoCommands()...)
	return cmds
}

// formatFlag is the shared --format flag of the operator commands.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

// withContainer loads the configuration, runs fn with a fresh container and shuts it down.
func withContainer(ctx context.Context, fn func(container *app.Container) error) error {
	container := app.NewContainer(config.Load())
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			fmt.Printf("Warning: failed to shutdown container: %v\n", err)
		}
	}()
	return fn(container)
}
