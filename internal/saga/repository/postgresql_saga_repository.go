// Package repository provides saga transaction persistence for recovery and
// observability.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/saga/domain"
)

// PostgreSQLSagaRepository implements saga transaction persistence for PostgreSQL.
type PostgreSQLSagaRepository struct {
	db *sql.DB
}

// NewPostgreSQLSagaRepository creates a new PostgreSQLSagaRepository.
func NewPostgreSQLSagaRepository(db *sql.DB) *PostgreSQLSagaRepository {
	return &PostgreSQLSagaRepository{db: db}
}

const sagaColumns = `saga_id, name, steps, status, context, current_step,
	created_at, started_at, completed_at, error`

// Save inserts a new saga transaction.
func (r *PostgreSQLSagaRepository) Save(ctx context.Context, txn *domain.Transaction) error {
	querier := database.GetTx(ctx, r.db)

	contextJSON, err := json.Marshal(txn.Context)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal saga context")
	}

	query := `INSERT INTO saga_transactions
			  (saga_id, name, steps, status, context, current_step, created_at,
			   started_at, completed_at, error)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = querier.ExecContext(ctx, query,
		txn.SagaID, txn.Name, pq.Array(txn.Steps), txn.Status, contextJSON,
		txn.CurrentStep, txn.CreatedAt, txn.StartedAt, txn.CompletedAt, txn.Error)
	if err != nil {
		return apperrors.Wrap(err, "failed to save saga transaction")
	}
	return nil
}

// Update persists the transaction's progress and state.
func (r *PostgreSQLSagaRepository) Update(ctx context.Context, txn *domain.Transaction) error {
	querier := database.GetTx(ctx, r.db)

	contextJSON, err := json.Marshal(txn.Context)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal saga context")
	}

	query := `UPDATE saga_transactions
			  SET status = $1, context = $2, current_step = $3, started_at = $4,
			      completed_at = $5, error = $6
			  WHERE saga_id = $7`

	_, err = querier.ExecContext(ctx, query,
		txn.Status, contextJSON, txn.CurrentStep, txn.StartedAt,
		txn.CompletedAt, txn.Error, txn.SagaID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update saga transaction")
	}
	return nil
}

// Get retrieves a saga transaction by id.
func (r *PostgreSQLSagaRepository) Get(ctx context.Context, sagaID string) (*domain.Transaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + `
			  FROM saga_transactions
			  WHERE saga_id = $1`

	var txn domain.Transaction
	var steps pq.StringArray
	var contextJSON []byte

	err := querier.QueryRowContext(ctx, query, sagaID).Scan(
		&txn.SagaID, &txn.Name, &steps, &txn.Status, &contextJSON,
		&txn.CurrentStep, &txn.CreatedAt, &txn.StartedAt, &txn.CompletedAt, &txn.Error)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get saga transaction")
	}

	txn.Steps = steps
	if err := json.Unmarshal(contextJSON, &txn.Context); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal saga context")
	}
	return &txn, nil
}

// ListByStatus retrieves saga transactions in the given status, oldest first.
func (r *PostgreSQLSagaRepository) ListByStatus(
	ctx context.Context,
	status domain.TransactionStatus,
	limit int,
) ([]*domain.Transaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + `
			  FROM saga_transactions
			  WHERE status = $1
			  ORDER BY created_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list saga transactions")
	}
	defer rows.Close() //nolint:errcheck

	var txns []*domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var steps pq.StringArray
		var contextJSON []byte

		err := rows.Scan(
			&txn.SagaID, &txn.Name, &steps, &txn.Status, &contextJSON,
			&txn.CurrentStep, &txn.CreatedAt, &txn.StartedAt, &txn.CompletedAt, &txn.Error)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan saga transaction")
		}

		txn.Steps = steps
		if err := json.Unmarshal(contextJSON, &txn.Context); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal saga context")
		}
		txns = append(txns, &txn)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate saga transactions")
	}
	return txns, nil
}
