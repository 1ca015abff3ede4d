package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/saga/domain"
)

// MySQLSagaRepository implements saga transaction persistence for MySQL. Step
// lists are stored as JSON since MySQL has no native array type.
type MySQLSagaRepository struct {
	db *sql.DB
}

// NewMySQLSagaRepository creates a new MySQLSagaRepository.
func NewMySQLSagaRepository(db *sql.DB) *MySQLSagaRepository {
	return &MySQLSagaRepository{db: db}
}

// Save inserts a new saga transaction.
func (r *MySQLSagaRepository) Save(ctx context.Context, txn *domain.Transaction) error {
	querier := database.GetTx(ctx, r.db)

	stepsJSON, contextJSON, err := marshalSagaJSON(txn)
	if err != nil {
		return err
	}

	query := `INSERT INTO saga_transactions
			  (saga_id, name, steps, status, context, current_step, created_at,
			   started_at, completed_at, error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query,
		txn.SagaID, txn.Name, stepsJSON, txn.Status, contextJSON,
		txn.CurrentStep, txn.CreatedAt, txn.StartedAt, txn.CompletedAt, txn.Error)
	if err != nil {
		return apperrors.Wrap(err, "failed to save saga transaction")
	}
	return nil
}

// Update persists the transaction's progress and state.
func (r *MySQLSagaRepository) Update(ctx context.Context, txn *domain.Transaction) error {
	querier := database.GetTx(ctx, r.db)

	_, contextJSON, err := marshalSagaJSON(txn)
	if err != nil {
		return err
	}

	query := `UPDATE saga_transactions
			  SET status = ?, context = ?, current_step = ?, started_at = ?,
			      completed_at = ?, error = ?
			  WHERE saga_id = ?`

	_, err = querier.ExecContext(ctx, query,
		txn.Status, contextJSON, txn.CurrentStep, txn.StartedAt,
		txn.CompletedAt, txn.Error, txn.SagaID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update saga transaction")
	}
	return nil
}

// Get retrieves a saga transaction by id.
func (r *MySQLSagaRepository) Get(ctx context.Context, sagaID string) (*domain.Transaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + `
			  FROM saga_transactions
			  WHERE saga_id = ?`

	txn, err := scanMySQLSaga(querier.QueryRowContext(ctx, query, sagaID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get saga transaction")
	}
	return txn, nil
}

// ListByStatus retrieves saga transactions in the given status, oldest first.
func (r *MySQLSagaRepository) ListByStatus(
	ctx context.Context,
	status domain.TransactionStatus,
	limit int,
) ([]*domain.Transaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + `
			  FROM saga_transactions
			  WHERE status = ?
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list saga transactions")
	}
	defer rows.Close() //nolint:errcheck

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanMySQLSaga(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan saga transaction")
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate saga transactions")
	}
	return txns, nil
}

func marshalSagaJSON(txn *domain.Transaction) (stepsJSON, contextJSON []byte, err error) {
	stepsJSON, err = json.Marshal(txn.Steps)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal saga steps")
	}
	contextJSON, err = json.Marshal(txn.Context)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal saga context")
	}
	return stepsJSON, contextJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLSaga(row rowScanner) (*domain.Transaction, error) {
	var txn domain.Transaction
	var stepsJSON, contextJSON []byte

	err := row.Scan(
		&txn.SagaID, &txn.Name, &stepsJSON, &txn.Status, &contextJSON,
		&txn.CurrentStep, &txn.CreatedAt, &txn.StartedAt, &txn.CompletedAt, &txn.Error)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &txn.Steps); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contextJSON, &txn.Context); err != nil {
		return nil, err
	}
	return &txn, nil
}
