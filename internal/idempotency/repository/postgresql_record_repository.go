// Package repository implements idempotency record persistence. The conditional
// insert in CheckAndCreate is the linearization point that gives exactly-once:
// among concurrent racers on the same key, the database accepts exactly one row.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// PostgreSQLRecordRepository implements idempotency record persistence for PostgreSQL.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQLRecordRepository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{db: db}
}

const recordColumns = `idempotency_key, operation_type, service, status, result, error,
	created_at, updated_at, completed_at, expires_at, retry_count`

// CheckAndCreate atomically inserts the record if no row exists for its key.
// Returns (true, nil) when this caller won the insert, or (false, existing) when
// another row already holds the key. The insert and the conflict detection are a
// single statement; concurrent callers cannot both observe created=true.
func (r *PostgreSQLRecordRepository) CheckAndCreate(
	ctx context.Context,
	record *domain.Record,
) (bool, *domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := marshalResult(record.Result)
	if err != nil {
		return false, nil, err
	}

	query := `INSERT INTO idempotency_records
			  (idempotency_key, operation_type, service, status, result, error,
			   created_at, updated_at, completed_at, expires_at, retry_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (idempotency_key) DO NOTHING`

	res, err := querier.ExecContext(
		ctx,
		query,
		record.IdempotencyKey,
		record.OperationType,
		record.Service,
		record.Status,
		result,
		record.Error,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
		record.ExpiresAt,
		record.RetryCount,
	)
	if err != nil {
		return false, nil, apperrors.Wrap(err, "failed to create idempotency record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, nil, apperrors.Wrap(err, "failed to read rows affected")
	}
	if rows == 1 {
		return true, nil, nil
	}

	existing, err := r.Get(ctx, record.IdempotencyKey)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Get retrieves a record by its idempotency key.
func (r *PostgreSQLRecordRepository) Get(ctx context.Context, key string) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + `
			  FROM idempotency_records
			  WHERE idempotency_key = $1`

	record, err := scanRecord(querier.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// UpdateStatus transitions the record in a single atomic statement. Terminal
// statuses stamp completed_at; FAILED increments retry_count. Returns false when
// no row exists for the key (record expired or deleted mid-flight).
func (r *PostgreSQLRecordRepository) UpdateStatus(
	ctx context.Context,
	key string,
	status domain.Status,
	result map[string]any,
	errMsg *string,
	expiresAt *time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	resultJSON, err := marshalResult(result)
	if err != nil {
		return false, err
	}

	query := `UPDATE idempotency_records
			  SET status = $1,
			      result = COALESCE($2, result),
			      error = COALESCE($3, error),
			      updated_at = NOW(),
			      completed_at = CASE WHEN $1 IN ('completed', 'failed') THEN NOW() ELSE completed_at END,
			      retry_count = retry_count + CASE WHEN $1 = 'failed' THEN 1 ELSE 0 END,
			      expires_at = COALESCE($4, expires_at)
			  WHERE idempotency_key = $5`

	res, err := querier.ExecContext(ctx, query, status, resultJSON, errMsg, expiresAt, key)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update idempotency record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read rows affected")
	}
	return rows == 1, nil
}

// Delete removes a record by key. Returns true when a row was removed.
func (r *PostgreSQLRecordRepository) Delete(ctx context.Context, key string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	res, err := querier.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE idempotency_key = $1`, key)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete idempotency record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read rows affected")
	}
	return rows == 1, nil
}

// ListByOperation retrieves records for an operation type, optionally filtered by status.
func (r *PostgreSQLRecordRepository) ListByOperation(
	ctx context.Context,
	operationType domain.OperationType,
	status *domain.Status,
	limit int,
) ([]*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + `
			  FROM idempotency_records
			  WHERE operation_type = $1 AND ($2::text IS NULL OR status = $2)
			  ORDER BY created_at DESC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, operationType, status, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list idempotency records")
	}
	defer rows.Close() //nolint:errcheck

	var records []*domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan idempotency record")
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate idempotency records")
	}
	return records, nil
}

// DeleteExpired removes up to batchSize records past their expiry. Best-effort
// reaper for rows that outlived their logical TTL.
func (r *PostgreSQLRecordRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE idempotency_key IN (
			      SELECT idempotency_key FROM idempotency_records
			      WHERE expires_at < NOW()
			      LIMIT $1
			  )`

	res, err := querier.ExecContext(ctx, query, batchSize)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired idempotency records")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return int(rows), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for record scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var result sql.NullString

	err := row.Scan(
		&record.IdempotencyKey,
		&record.OperationType,
		&record.Service,
		&record.Status,
		&result,
		&record.Error,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.CompletedAt,
		&record.ExpiresAt,
		&record.RetryCount,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &record.Result); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func marshalResult(result map[string]any) (*string, error) {
	if result == nil {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal result")
	}
	s := string(raw)
	return &s, nil
}
