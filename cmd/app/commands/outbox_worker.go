package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/exactly-once/internal/app"
	"github.com/allisson/exactly-once/internal/config"
)

// reaperInterval is how often the worker sweeps expired idempotency records
// and outbox events.
const reaperInterval = 1 * time.Hour

// RunOutboxWorker starts the standalone outbox processor alongside a periodic
// expired-record reaper. Blocks until receiving SIGINT/SIGTERM.
func RunOutboxWorker(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting outbox worker")

	defer closeContainer(container, logger)

	outboxProcessor, err := container.OutboxProcessor()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	store, err := container.Store()
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency store: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return outboxProcessor.Start(ctx)
	})

	group.Go(func() error {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := store.CleanupExpired(ctx, cfg.OutboxBatchSize); err != nil {
					logger.Error("failed to cleanup expired idempotency records", slog.Any("error", err))
				}
				if _, err := outboxProcessor.CleanupExpired(ctx, cfg.OutboxBatchSize); err != nil {
					logger.Error("failed to cleanup expired outbox events", slog.Any("error", err))
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("outbox worker stopped")
	return nil
}
