package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/exactly-once/internal/app"
	"github.com/allisson/exactly-once/internal/config"
)

// RunCleanupExpired deletes expired idempotency records and outbox events in
// one pass, then exits. Intended for cron-style scheduling.
func RunCleanupExpired(ctx context.Context, batchSize int) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	store, err := container.Store()
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency store: %w", err)
	}

	outboxProcessor, err := container.OutboxProcessor()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	records, err := store.CleanupExpired(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired idempotency records: %w", err)
	}

	events, err := outboxProcessor.CleanupExpired(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired outbox events: %w", err)
	}

	logger.Info("cleanup completed",
		slog.Int("idempotency_records", records),
		slog.Int("outbox_events", events),
	)
	return nil
}
