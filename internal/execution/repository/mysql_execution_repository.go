package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/execution/domain"
)

// MySQLExecutionRepository implements execution result persistence for MySQL.
type MySQLExecutionRepository struct {
	db *sql.DB
}

// NewMySQLExecutionRepository creates a new MySQLExecutionRepository.
func NewMySQLExecutionRepository(db *sql.DB) *MySQLExecutionRepository {
	return &MySQLExecutionRepository{db: db}
}

// Upsert writes the execution record, replacing any previous attempt's row.
func (r *MySQLExecutionRepository) Upsert(ctx context.Context, result *domain.Result) error {
	querier := database.GetTx(ctx, r.db)

	resultJSON, err := marshalExecutionResult(result.Result)
	if err != nil {
		return err
	}
	eventsJSON, err := marshalEventIDs(result.EventsPublished)
	if err != nil {
		return err
	}

	query := `INSERT INTO execution_results
			  (execution_id, operation_type, status, result, error, started_at,
			   completed_at, duration_seconds, idempotency_key, retry_count, events_published)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			      status = VALUES(status),
			      result = VALUES(result),
			      error = VALUES(error),
			      started_at = VALUES(started_at),
			      completed_at = VALUES(completed_at),
			      duration_seconds = VALUES(duration_seconds),
			      retry_count = VALUES(retry_count),
			      events_published = VALUES(events_published)`

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
		eventsJSON,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert execution result")
	}
	return nil
}

// Get retrieves an execution record by its deterministic id.
func (r *MySQLExecutionRepository) Get(ctx context.Context, executionID string) (*domain.Result, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + executionColumns + `
			  FROM execution_results
			  WHERE execution_id = ?`

	var result domain.Result
	var resultJSON, eventsJSON sql.NullString

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
		&eventsJSON,
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
	if eventsJSON.Valid && eventsJSON.String != "" {
		var raw []string
		if err := json.Unmarshal([]byte(eventsJSON.String), &raw); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal published event ids")
		}
		for _, s := range raw {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to parse published event id")
			}
			result.EventsPublished = append(result.EventsPublished, id)
		}
	}
	return &result, nil
}

// Cancel transitions an execution to cancelled while it is pending or executing.
func (r *MySQLExecutionRepository) Cancel(ctx context.Context, executionID string, errMsg string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE execution_results
			  SET status = ?, error = ?, completed_at = NOW(6),
			      duration_seconds = TIMESTAMPDIFF(MICROSECOND, started_at, NOW(6)) / 1000000
			  WHERE execution_id = ? AND status IN (?, ?)`

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

func marshalEventIDs(ids []uuid.UUID) (string, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal published event ids")
	}
	return string(out), nil
}
