package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/outbox/domain"
)

// MySQLOutboxRepository handles outbox event persistence for MySQL.
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository.
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{db: db}
}

const insertEventQueryMySQL = `INSERT INTO outbox_events
	(id, event_type, aggregate_id, aggregate_type, payload, metadata, topic,
	 routing_key, status, priority, priority_weight, created_at, scheduled_at,
	 published_at, expires_at, retry_count, max_retries, retry_delay_seconds,
	 last_error, idempotency_key)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Create inserts a new outbox event inside the caller's transaction when one is
// present in the context.
func (r *MySQLOutboxRepository) Create(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	args, err := eventInsertArgs(event)
	if err != nil {
		return err
	}

	if _, err := querier.ExecContext(ctx, insertEventQueryMySQL, args...); err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// CreateBatch inserts events within the caller's transaction: all or nothing.
func (r *MySQLOutboxRepository) CreateBatch(ctx context.Context, events []*domain.Event) error {
	for _, event := range events {
		if err := r.Create(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// GetReadyEvents retrieves pending events that are due and not expired, highest
// priority first, FIFO within a priority.
func (r *MySQLOutboxRepository) GetReadyEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + eventColumns + `
			  FROM outbox_events
			  WHERE status = ?
			    AND scheduled_at <= NOW(6)
			    AND (expires_at IS NULL OR expires_at > NOW(6))
			  ORDER BY priority_weight DESC, created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get ready outbox events")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// Update persists the event's processing state.
func (r *MySQLOutboxRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	payload, metadata, err := marshalEventJSON(event)
	if err != nil {
		return err
	}

	query := `UPDATE outbox_events
			  SET payload = ?, metadata = ?, status = ?, priority = ?,
			      priority_weight = ?, scheduled_at = ?, published_at = ?,
			      retry_count = ?, last_error = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(ctx, query,
		payload, metadata, event.Status, event.Priority, event.Priority.Weight(),
		event.ScheduledAt, event.PublishedAt, event.RetryCount, event.LastError, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	return nil
}

// ListDeadLetter retrieves dead-lettered events awaiting manual inspection.
func (r *MySQLOutboxRepository) ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + eventColumns + `
			  FROM outbox_events
			  WHERE status = ?
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusFailed, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead-letter events")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// ResetForRetry moves dead-lettered events back to pending with retry state cleared.
func (r *MySQLOutboxRepository) ResetForRetry(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	querier := database.GetTx(ctx, r.db)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `UPDATE outbox_events
			  SET status = ?, retry_count = 0, last_error = NULL, scheduled_at = NOW(6)
			  WHERE id IN (` + placeholders + `) AND status = ?`

	args := make([]any, 0, len(ids)+2)
	args = append(args, domain.EventStatusPending)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, domain.EventStatusFailed)

	res, err := querier.ExecContext(ctx, query, args...)
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
func (r *MySQLOutboxRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events
			  WHERE expires_at IS NOT NULL AND expires_at < NOW(6)
			  LIMIT ?`

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
