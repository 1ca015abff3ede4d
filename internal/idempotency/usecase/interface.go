// Package usecase implements the idempotency store business logic: atomic
// check-and-create, status transitions, expiry handling and cleanup.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// RecordRepository defines idempotency record persistence operations. All
// operations are atomic with respect to concurrent callers on the same key.
type RecordRepository interface {
	// CheckAndCreate inserts the record if absent, in a single conditional
	// statement. Returns (true, nil) on insert or (false, existing) on conflict.
	CheckAndCreate(ctx context.Context, record *domain.Record) (bool, *domain.Record, error)

	// Get retrieves a record by key; domain.ErrRecordNotFound when absent.
	Get(ctx context.Context, key string) (*domain.Record, error)

	// UpdateStatus transitions a record atomically. Returns false when the row is gone.
	UpdateStatus(
		ctx context.Context,
		key string,
		status domain.Status,
		result map[string]any,
		errMsg *string,
		expiresAt *time.Time,
	) (bool, error)

	// Delete removes a record; true when a row was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// ListByOperation retrieves records by operation type and optional status.
	ListByOperation(
		ctx context.Context,
		operationType domain.OperationType,
		status *domain.Status,
		limit int,
	) ([]*domain.Record, error)

	// DeleteExpired removes up to batchSize expired records.
	DeleteExpired(ctx context.Context, batchSize int) (int, error)
}

// Store defines the idempotency store contract exposed to the executor and the
// HTTP middleware.
type Store interface {
	// CheckAndCreate returns the record for the request's key and whether this
	// caller created it. Exactly one of N concurrent callers on the same key
	// observes isNew=true.
	CheckAndCreate(ctx context.Context, req *domain.Request, ttl time.Duration) (*domain.Record, bool, error)

	// UpdateStatus transitions the record; false signals the record vanished
	// mid-flight, which callers must treat as entering failed territory.
	UpdateStatus(
		ctx context.Context,
		key string,
		status domain.Status,
		result map[string]any,
		errMsg *string,
		ttl *time.Duration,
	) (bool, error)

	// Get returns the record or nil. Expired records are lazily deleted.
	Get(ctx context.Context, key string) (*domain.Record, error)

	// Delete removes the record; true when it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// ListByOperation lists records for an operation type with optional status filter.
	ListByOperation(
		ctx context.Context,
		operationType domain.OperationType,
		status *domain.Status,
		limit int,
	) ([]*domain.Record, error)

	// CleanupExpired reaps expired records in batches, returning the count removed.
	CleanupExpired(ctx context.Context, batchSize int) (int, error)
}
