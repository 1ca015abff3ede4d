package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
)

// MySQLLockRepository implements the distributed lock for MySQL. MySQL lacks a
// conditional upsert with a WHERE clause, so acquisition runs a short
// transaction: read the row FOR UPDATE, then insert or take over an expired
// lock. The row lock makes the read-modify-write atomic across processes.
type MySQLLockRepository struct {
	db *sql.DB
}

// NewMySQLLockRepository creates a new MySQLLockRepository.
func NewMySQLLockRepository(db *sql.DB) *MySQLLockRepository {
	return &MySQLLockRepository{db: db}
}

// Acquire attempts to take the named lock for owner with the given TTL.
func (r *MySQLLockRepository) Acquire(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to begin lock transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	expiresAt := time.Now().UTC().Add(ttl)

	var currentOwner string
	var currentExpiry time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT owner, expires_at FROM execution_locks WHERE name = ? FOR UPDATE`,
		name,
	).Scan(&currentOwner, &currentExpiry)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO execution_locks (name, owner, expires_at) VALUES (?, ?, ?)`,
			name, owner, expiresAt); err != nil {
			return false, apperrors.Wrap(err, "failed to insert lock")
		}
	case err != nil:
		return false, apperrors.Wrap(err, "failed to read lock")
	case currentExpiry.After(time.Now().UTC()):
		// Held and not expired.
		return false, nil
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE execution_locks SET owner = ?, expires_at = ? WHERE name = ?`,
			owner, expiresAt, name); err != nil {
			return false, apperrors.Wrap(err, "failed to take over expired lock")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.Wrap(err, "failed to commit lock transaction")
	}
	return true, nil
}

// Release frees the named lock when owner still holds it.
func (r *MySQLLockRepository) Release(ctx context.Context, name, owner string) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM execution_locks WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return apperrors.Wrap(err, "failed to release lock")
	}
	return nil
}
