package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// MySQLRecordRepository implements idempotency record persistence for MySQL.
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQLRecordRepository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{db: db}
}

// CheckAndCreate atomically inserts the record if no row exists for its key.
// INSERT IGNORE is the MySQL equivalent of the PostgreSQL conflict-free insert:
// exactly one concurrent caller observes an affected row.
func (r *MySQLRecordRepository) CheckAndCreate(
	ctx context.Context,
	record *domain.Record,
) (bool, *domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := marshalResult(record.Result)
	if err != nil {
		return false, nil, err
	}

	query := `INSERT IGNORE INTO idempotency_records
			  (idempotency_key, operation_type, service, status, result, error,
			   created_at, updated_at, completed_at, expires_at, retry_count)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
func (r *MySQLRecordRepository) Get(ctx context.Context, key string) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + `
			  FROM idempotency_records
			  WHERE idempotency_key = ?`

	record, err := scanRecord(querier.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// UpdateStatus transitions the record in a single atomic statement.
func (r *MySQLRecordRepository) UpdateStatus(
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
			  SET status = ?,
			      result = COALESCE(?, result),
			      error = COALESCE(?, error),
			      updated_at = NOW(6),
			      completed_at = CASE WHEN ? IN ('completed', 'failed') THEN NOW(6) ELSE completed_at END,
			      retry_count = retry_count + CASE WHEN ? = 'failed' THEN 1 ELSE 0 END,
			      expires_at = COALESCE(?, expires_at)
			  WHERE idempotency_key = ?`

	res, err := querier.ExecContext(ctx, query, status, resultJSON, errMsg, status, status, expiresAt, key)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update idempotency record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read rows affected")
	}
	return rows >= 1, nil
}

// Delete removes a record by key. Returns true when a row was removed.
func (r *MySQLRecordRepository) Delete(ctx context.Context, key string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	res, err := querier.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE idempotency_key = ?`, key)
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
func (r *MySQLRecordRepository) ListByOperation(
	ctx context.Context,
	operationType domain.OperationType,
	status *domain.Status,
	limit int,
) ([]*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + `
			  FROM idempotency_records
			  WHERE operation_type = ?`)
	args := []any{operationType}

	if status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, *status)
	}
	sb.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := querier.QueryContext(ctx, sb.String(), args...)
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

// DeleteExpired removes up to batchSize records past their expiry.
func (r *MySQLRecordRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE expires_at < NOW(6)
			  LIMIT ?`

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
