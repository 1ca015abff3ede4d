package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/exactly-once/internal/app"
	"github.com/allisson/exactly-once/internal/config"
)

// RunReprocessDLQ moves up to limit dead-lettered outbox events back to
// pending so the processor picks them up again.
func RunReprocessDLQ(ctx context.Context, limit int) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	outboxProcessor, err := container.OutboxProcessor()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	count, err := outboxProcessor.ReprocessDLQ(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to reprocess dead-lettered events: %w", err)
	}

	logger.Info("dead-lettered events reprocessed", slog.Int("count", count))
	return nil
}
