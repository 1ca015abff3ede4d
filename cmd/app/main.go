// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/exactly-once/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Exactly-once execution service for trading operations",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API, metrics server and outbox processor",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "outbox-worker",
				Usage: "Start the standalone outbox processor and expired-record reaper",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunOutboxWorker(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "cleanup-expired",
				Usage: "Delete expired idempotency records and outbox events",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batch-size",
						Aliases: []string{"b"},
						Value:   1000,
						Usage:   "Maximum rows deleted per table",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCleanupExpired(ctx, int(cmd.Int("batch-size")))
				},
			},
			{
				Name:  "reprocess-dlq",
				Usage: "Move dead-lettered outbox events back to pending",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   100,
						Usage:   "Maximum events to reprocess",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunReprocessDLQ(ctx, int(cmd.Int("limit")))
				},
			},
			{
				Name:  "hash-key",
				Usage: "Compute the deterministic idempotency key for a payload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "operation",
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "Operation type (e.g., order_submit)",
					},
					&cli.StringFlag{
						Name:    "service",
						Aliases: []string{"s"},
						Value:   "trading-api",
						Usage:   "Service name component of the key",
					},
					&cli.StringFlag{
						Name:     "payload",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "JSON payload to hash",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunHashKey(
						commands.DefaultIO().Writer,
						cmd.String("operation"),
						cmd.String("service"),
						cmd.String("payload"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
