// Package repository implements execution result and distributed lock
// persistence. The lock acquire is a single conditional statement: the database
// is the only cross-process arbiter, no in-memory mutex is involved.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/execution/domain"
)

// PostgreSQLExecutionRepository implements execution result persistence for PostgreSQL.
type PostgreSQLExecutionRepository struct {
	db *sql.DB
}

// NewPostgreSQLExecutionRepository creates a new PostgreSQLExecutionRepository.
func NewPostgreSQLExecutionRepository(db *sql.DB) *PostgreSQLExecutionRepository {
	return &PostgreSQLExecutionRepository{db: db}
}

const executionColumns = `execution_id, operation_type, status, result, error,
	started_at, completed_at, duration_seconds, idempotency_key, retry_count,
	events_published`

// Upsert writes the execution record, replacing any previous attempt's row for
// the same deterministic execution id.
func (r *PostgreSQLExecutionRepository) Upsert(ctx context.Context, result *domain.Result) error {
	querier := database.GetTx(ctx, r.db)

	resultJSON, err := marshalExecutionResult(result.Result)
	if err != nil {
		return err
	}

	eventIDs := make([]string, len(result.EventsPublished))
	for i, id := range result.EventsPublished {
		eventIDs[i] = id.String()
	}

	query := `INSERT INTO execution_results
			  (execution_id, operation_type, status, result, error, started_at,
			   completed_at, duration_seconds, idempotency_key, retry_count, events_published)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (execution_id) DO UPDATE SET
			      status = EXCLUDED.status,
			      result = EXCLUDED.result,
			      error = EXCLUDED.error,
			      started_at = EXCLUDED.started_at,
			      completed_at = EXCLUDED.completed_at,
			      duration_seconds = EXCLUDED.duration_seconds,
			      retry_count = EXCLUDED.retry_count,
			      events_published = EXCLUDED.events_published`

	_, err = querier.ExecContext(ctx, query,
		result.ExecutionID,
		result.OperationType,
		result.Status,
		resultJSON,
		result.Error,
		result.StartedAt,
		result.CompletedAt,
		result.DurationSeconds,
		result.IdempotencyKey,
		result.RetryCount,
		pq.Array(eventIDs),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert execution result")
	}
	return nil
}

// Get retrieves an execution record by its deterministic id.
func (r *PostgreSQLExecutionRepository) Get(ctx context.Context, executionID string) (*domain.Result, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + executionColumns + `
			  FROM execution_results
			  WHERE execution_id = $1`

	var result domain.Result
	var resultJSON sql.NullString
	var eventIDs pq.StringArray

	err := querier.QueryRowContext(ctx, query, executionID).Scan(
		&result.ExecutionID,
		&result.OperationType,
		&result.Status,
		&resultJSON,
		&result.Error,
		&result.StartedAt,
		&result.CompletedAt,
		&result.DurationSeconds,
		&result.IdempotencyKey,
		&result.RetryCount,
		&eventIDs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get execution result")
	}

	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &result.Result); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal execution result")
		}
	}
	for _, raw := range eventIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse published event id")
		}
		result.EventsPublished = append(result.EventsPublished, id)
	}
	return &result, nil
}

// Cancel transitions an execution to cancelled, honored only while the current
// status is pending or executing. Returns false when the execution was already
// terminal or absent.
func (r *PostgreSQLExecutionRepository) Cancel(ctx context.Context, executionID string, errMsg string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE execution_results
			  SET status = $1, error = $2, completed_at = NOW(),
			      duration_seconds = EXTRACT(EPOCH FROM (NOW() - started_at))
			  WHERE execution_id = $3 AND status IN ($4, $5)`

	res, err := querier.ExecContext(ctx, query,
		domain.StatusCancelled, errMsg, executionID,
		domain.StatusPending, domain.StatusExecuting)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to cancel execution")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read rows affected")
	}
	return rows == 1, nil
}

func marshalExecutionResult(result map[string]any) (*string, error) {
	if result == nil {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal execution result")
	}
	s := string(raw)
	return &s, nil
}
