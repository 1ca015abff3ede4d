// Package usecase implements the outbox processor: a polling drain loop that
// dispatches ready events to registered handlers with bounded timeouts,
// exponential backoff on failure, and dead-lettering after retry exhaustion.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/outbox/domain"
)

// Config holds outbox processor configuration.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	PublishTimeout time.Duration
}

// EventRepository defines outbox event persistence operations.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	CreateBatch(ctx context.Context, events []*domain.Event) error
	GetReadyEvents(ctx context.Context, limit int) ([]*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error)
	ResetForRetry(ctx context.Context, ids []uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, batchSize int) (int, error)
}

// Publisher delivers an event to the outside world (message broker, webhook).
// Returning an error schedules a retry; after max retries the event is
// dead-lettered.
type Publisher func(ctx context.Context, event *domain.Event) error

// Processor defines the outbox contract exposed to the executor and the HTTP layer.
type Processor interface {
	StoreEvent(ctx context.Context, event *domain.Event) error
	StoreEventsBatch(ctx context.Context, events []*domain.Event) error
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) error
	ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error)
	ReprocessDLQ(ctx context.Context, limit int) (int, error)
	CleanupExpired(ctx context.Context, batchSize int) (int, error)
}

// OutboxProcessor implements Processor. The handler registry is instance-owned,
// never process-wide, so multiple processors can coexist in tests.
type OutboxProcessor struct {
	config           Config
	txManager        database.TxManager
	repo             EventRepository
	handlers         map[string]Publisher
	defaultPublisher Publisher
	logger           *slog.Logger
}

// NewOutboxProcessor creates a new OutboxProcessor with the given default publisher.
func NewOutboxProcessor(
	config Config,
	txManager database.TxManager,
	repo EventRepository,
	defaultPublisher Publisher,
	logger *slog.Logger,
) *OutboxProcessor {
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 30 * time.Second
	}
	return &OutboxProcessor{
		config:           config,
		txManager:        txManager,
		repo:             repo,
		handlers:         make(map[string]Publisher),
		defaultPublisher: defaultPublisher,
		logger:           logger,
	}
}

// RegisterHandler routes events of the given type to a dedicated publisher
// instead of the default one. Registration must happen before Start.
func (p *OutboxProcessor) RegisterHandler(eventType string, handler Publisher) {
	p.handlers[eventType] = handler
}

// StoreEvent persists a single event. When the context carries a transaction the
// insert joins it, making event persistence atomic with the caller's writes.
func (p *OutboxProcessor) StoreEvent(ctx context.Context, event *domain.Event) error {
	return p.repo.Create(ctx, event)
}

// StoreEventsBatch persists events all-or-nothing. Inside a caller transaction
// the inserts join it; otherwise a dedicated transaction wraps the batch.
func (p *OutboxProcessor) StoreEventsBatch(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if database.HasTx(ctx) {
		return p.repo.CreateBatch(ctx, events)
	}
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		return p.repo.CreateBatch(ctx, events)
	})
}

// Start runs the polling drain loop until the context is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.logger.Info("starting outbox processor",
		slog.Duration("interval", p.config.Interval),
		slog.Int("batch_size", p.config.BatchSize),
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping outbox processor")
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error("failed to process outbox events", slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents drains one batch of ready events inside a transaction. The
// SKIP LOCKED read keeps concurrent workers from double-dispatching.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) error {
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetReadyEvents(ctx, p.config.BatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		p.logger.Debug("dispatching outbox events", slog.Int("count", len(events)))

		now := time.Now().UTC()
		for _, event := range events {
			if event.Expired(now) {
				// Skipped, never retried; the expiry reaper collects it.
				continue
			}

			if err := p.dispatch(ctx, event); err != nil {
				p.logger.Error("failed to publish outbox event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retry_count", event.RetryCount+1),
					slog.Any("error", err),
				)
				event.MarkFailure(err.Error())

				if event.Status == domain.EventStatusFailed {
					p.logger.Warn("outbox event dead-lettered",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", event.EventType),
					)
				}
			} else {
				event.MarkPublished()
			}

			if err := p.repo.Update(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// dispatch delivers one event to its handler under the bounded publish timeout.
func (p *OutboxProcessor) dispatch(ctx context.Context, event *domain.Event) error {
	publisher := p.defaultPublisher
	if handler, ok := p.handlers[event.EventType]; ok {
		publisher = handler
	}
	if publisher == nil {
		return apperrors.New("no publisher registered for event type " + event.EventType)
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	return publisher(publishCtx, event)
}

// ListDeadLetter returns dead-lettered events for inspection.
func (p *OutboxProcessor) ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error) {
	return p.repo.ListDeadLetter(ctx, limit)
}

// ReprocessDLQ moves up to limit dead-lettered events back to pending with retry
// state reset. Administrative recovery after fixing a downstream outage.
func (p *OutboxProcessor) ReprocessDLQ(ctx context.Context, limit int) (int, error) {
	events, err := p.repo.ListDeadLetter(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}

	reset, err := p.repo.ResetForRetry(ctx, ids)
	if err != nil {
		return 0, err
	}

	p.logger.Info("dead-letter events requeued", slog.Int("count", reset))
	return reset, nil
}

// CleanupExpired garbage-collects events past their expiry.
func (p *OutboxProcessor) CleanupExpired(ctx context.Context, batchSize int) (int, error) {
	removed, err := p.repo.DeleteExpired(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.Info("expired outbox events removed", slog.Int("count", removed))
	}
	return removed, nil
}

// LoggingPublisher is the default publisher used when no broker is wired: it
// logs the event and reports success. Real deployments register per-event-type
// handlers or supply their own default.
func LoggingPublisher(logger *slog.Logger) Publisher {
	return func(ctx context.Context, event *domain.Event) error {
		logger.Info("publishing event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
			slog.String("topic", event.Topic),
			slog.String("priority", string(event.Priority)),
		)
		return nil
	}
}
