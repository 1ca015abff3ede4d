package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
)

// PostgreSQLLockRepository implements the distributed lock for PostgreSQL. A
// lock row is "held" until its expiry; acquisition is a single upsert that only
// succeeds when the row is absent or expired — the set-if-not-exists primitive
// the executor relies on. A crashed holder self-heals via the TTL.
type PostgreSQLLockRepository struct {
	db *sql.DB
}

// NewPostgreSQLLockRepository creates a new PostgreSQLLockRepository.
func NewPostgreSQLLockRepository(db *sql.DB) *PostgreSQLLockRepository {
	return &PostgreSQLLockRepository{db: db}
}

// Acquire attempts to take the named lock for owner with the given TTL. Returns
// true only when this caller now holds the lock. The conditional upsert is one
// atomic statement; concurrent callers cannot both succeed.
func (r *PostgreSQLLockRepository) Acquire(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO execution_locks (name, owner, expires_at)
			  VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
			  ON CONFLICT (name) DO UPDATE SET
			      owner = EXCLUDED.owner,
			      expires_at = EXCLUDED.expires_at
			  WHERE execution_locks.expires_at < NOW()`

	res, err := querier.ExecContext(ctx, query, name, owner, ttl.Milliseconds())
	if err != nil {
		return false, apperrors.Wrap(err, "failed to acquire lock")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read rows affected")
	}
	return rows == 1, nil
}

// Release frees the named lock, but only when owner still holds it — a holder
// whose lock expired and was taken over must not release the new holder's lock.
func (r *PostgreSQLLockRepository) Release(ctx context.Context, name, owner string) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM execution_locks WHERE name = $1 AND owner = $2`, name, owner)
	if err != nil {
		return apperrors.Wrap(err, "failed to release lock")
	}
	return nil
}
