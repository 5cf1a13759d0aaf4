package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/klaviyo-relay/cmd/app/commands"
	"github.com/allisson/klaviyo-relay/internal/app"
)

func getQueueCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "queue-stats",
			Usage: "Show the depth of every dispatch queue per job status",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					dispatcher, err := container.DispatchUseCase()
					if err != nil {
						return err
					}
					return commands.RunQueueStats(
						ctx,
						dispatcher,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "list-failed-jobs",
			Usage: "List permanently failed jobs of a queue",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "queue",
					Aliases:  []string{"q"},
					Required: true,
					Usage:    "Queue name",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of jobs to list",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					dispatcher, err := container.DispatchUseCase()
					if err != nil {
						return err
					}
					return commands.RunListFailedJobs(
						ctx,
						dispatcher,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("queue"),
						int(cmd.Int("limit")),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "requeue-job",
			Usage: "Return a permanently failed job to its queue with a fresh attempt budget",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Job ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					dispatcher, err := container.DispatchUseCase()
					if err != nil {
						return err
					}
					return commands.RunRequeueJob(
						ctx,
						dispatcher,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
