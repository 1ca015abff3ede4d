// Package repository provides data persistence implementations for outbox events.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/outbox/domain"
)

// PostgreSQLOutboxRepository handles outbox event persistence for PostgreSQL.
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository.
func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{db: db}
}

const eventColumns = `id, event_type, aggregate_id, aggregate_type, payload, metadata,
	topic, routing_key, status, priority, priority_weight, created_at, scheduled_at,
	published_at, expires_at, retry_count, max_retries, retry_delay_seconds,
	last_error, idempotency_key`

const insertEventQueryPG = `INSERT INTO outbox_events
	(id, event_type, aggregate_id, aggregate_type, payload, metadata, topic,
	 routing_key, status, priority, priority_weight, created_at, scheduled_at,
	 published_at, expires_at, retry_count, max_retries, retry_delay_seconds,
	 last_error, idempotency_key)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

// Create inserts a new outbox event. Runs inside the caller's transaction when
// one is present in the context, which is what makes event persistence atomic
// with the state change that produced it.
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	args, err := eventInsertArgs(event)
	if err != nil {
		return err
	}

	if _, err := querier.ExecContext(ctx, insertEventQueryPG, args...); err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// CreateBatch inserts events within the caller's transaction: all or nothing.
func (r *PostgreSQLOutboxRepository) CreateBatch(ctx context.Context, events []*domain.Event) error {
	for _, event := range events {
		if err := r.Create(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// GetReadyEvents retrieves pending events that are due and not expired, highest
// priority first, FIFO within a priority. SKIP LOCKED lets multiple worker
// processes drain the table without stepping on each other.
func (r *PostgreSQLOutboxRepository) GetReadyEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + eventColumns + `
			  FROM outbox_events
			  WHERE status = $1
			    AND scheduled_at <= NOW()
			    AND (expires_at IS NULL OR expires_at > NOW())
			  ORDER BY priority_weight DESC, created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get ready outbox events")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// Update persists the event's processing state.
func (r *PostgreSQLOutboxRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	payload, metadata, err := marshalEventJSON(event)
	if err != nil {
		return err
	}

	query := `UPDATE outbox_events
			  SET payload = $1, metadata = $2, status = $3, priority = $4,
			      priority_weight = $5, scheduled_at = $6, published_at = $7,
			      retry_count = $8, last_error = $9
			  WHERE id = $10`

	_, err = querier.ExecContext(ctx, query,
		payload, metadata, event.Status, event.Priority, event.Priority.Weight(),
		event.ScheduledAt, event.PublishedAt, event.RetryCount, event.LastError, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	return nil
}

// ListDeadLetter retrieves dead-lettered events awaiting manual inspection.
func (r *PostgreSQLOutboxRepository) ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + eventColumns + `
			  FROM outbox_events
			  WHERE status = $1
			  ORDER BY created_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusFailed, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead-letter events")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// ResetForRetry moves dead-lettered events back to pending with retry state
// cleared. Returns how many events were reset.
func (r *PostgreSQLOutboxRepository) ResetForRetry(ctx context.Context, ids []uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, retry_count = 0, last_error = NULL, scheduled_at = NOW()
			  WHERE id = ANY($2) AND status = $3`

	res, err := querier.ExecContext(ctx, query,
		domain.EventStatusPending, pq.Array(ids), domain.EventStatusFailed)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reset dead-letter events")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return int(rows), nil
}

// DeleteExpired garbage-collects events past their expiry.
func (r *PostgreSQLOutboxRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events
			  WHERE id IN (
			      SELECT id FROM outbox_events
			      WHERE expires_at IS NOT NULL AND expires_at < NOW()
			      LIMIT $1
			  )`

	res, err := querier.ExecContext(ctx, query, batchSize)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired outbox events")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return int(rows), nil
}

func eventInsertArgs(event *domain.Event) ([]any, error) {
	payload, metadata, err := marshalEventJSON(event)
	if err != nil {
		return nil, err
	}

	return []any{
		event.ID,
		event.EventType,
		event.AggregateID,
		event.AggregateType,
		payload,
		metadata,
		event.Topic,
		event.RoutingKey,
		event.Status,
		event.Priority,
		event.Priority.Weight(),
		event.CreatedAt,
		event.ScheduledAt,
		event.PublishedAt,
		event.ExpiresAt,
		event.RetryCount,
		event.MaxRetries,
		int(event.RetryDelay.Seconds()),
		event.LastError,
		event.IdempotencyKey,
	}, nil
}

func marshalEventJSON(event *domain.Event) (payload, metadata []byte, err error) {
	payload, err = json.Marshal(event.Payload)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal event payload")
	}
	metadata, err = json.Marshal(event.Metadata)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal event metadata")
	}
	return payload, metadata, nil
}

func scanEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var payload, metadata []byte
	var priorityWeight, retryDelaySeconds int

	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.AggregateID,
		&event.AggregateType,
		&payload,
		&metadata,
		&event.Topic,
		&event.RoutingKey,
		&event.Status,
		&event.Priority,
		&priorityWeight,
		&event.CreatedAt,
		&event.ScheduledAt,
		&event.PublishedAt,
		&event.ExpiresAt,
		&event.RetryCount,
		&event.MaxRetries,
		&retryDelaySeconds,
		&event.LastError,
		&event.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return nil, err
		}
	}
	event.RetryDelay = time.Duration(retryDelaySeconds) * time.Second
	return &event, nil
}
