package usecase

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// IdempotencyStore implements Store on top of a RecordRepository. Correctness
// comes from the repository's conditional insert; this layer adds TTL handling,
// lazy expiry deletion and the bounded expired-record retry.
type IdempotencyStore struct {
	repo   RecordRepository
	logger *slog.Logger
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(repo RecordRepository, logger *slog.Logger) *IdempotencyStore {
	return &IdempotencyStore{repo: repo, logger: logger}
}

// CheckAndCreate creates a PENDING record for a first-seen key, or returns the
// existing record without mutation. When the existing record is expired it is
// deleted and creation retried exactly once: the delete and the conditional
// insert are each atomic, so a bounded retry is sufficient.
func (s *IdempotencyStore) CheckAndCreate(
	ctx context.Context,
	req *domain.Request,
	ttl time.Duration,
) (*domain.Record, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		record := domain.NewRecord(req, ttl)

		created, existing, err := s.repo.CheckAndCreate(ctx, record)
		if err != nil {
			return nil, false, err
		}
		if created {
			s.logger.Debug("idempotency record created",
				slog.String("idempotency_key", record.IdempotencyKey),
			)
			return record, true, nil
		}

		if !existing.Expired(time.Now().UTC()) {
			return existing, false, nil
		}

		s.logger.Debug("expired idempotency record found, recreating",
			slog.String("idempotency_key", existing.IdempotencyKey),
		)
		if _, err := s.repo.Delete(ctx, existing.IdempotencyKey); err != nil {
			return nil, false, err
		}
	}

	return nil, false, apperrors.Wrap(apperrors.ErrConflict,
		"idempotency record kept expiring during creation")
}

// UpdateStatus transitions the record. Returns false when the record no longer
// exists; the operation's outcome cannot be recorded and upstream must not
// claim success.
func (s *IdempotencyStore) UpdateStatus(
	ctx context.Context,
	key string,
	status domain.Status,
	result map[string]any,
	errMsg *string,
	ttl *time.Duration,
) (bool, error) {
	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	updated, err := s.repo.UpdateStatus(ctx, key, status, result, errMsg, expiresAt)
	if err != nil {
		return false, err
	}
	if !updated {
		s.logger.Warn("idempotency record missing during status update",
			slog.String("idempotency_key", key),
			slog.String("status", string(status)),
		)
	}
	return updated, nil
}

// Get returns the record for the key, or nil when absent. Expired records are
// physically removed and reported as absent.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	record, err := s.repo.Get(ctx, key)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if record.Expired(time.Now().UTC()) {
		if _, err := s.repo.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return record, nil
}

// Delete removes the record for the key.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.repo.Delete(ctx, key)
}

// ListByOperation lists records for an operation type with optional status filter.
func (s *IdempotencyStore) ListByOperation(
	ctx context.Context,
	operationType domain.OperationType,
	status *domain.Status,
	limit int,
) ([]*domain.Record, error) {
	if err := operationType.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListByOperation(ctx, operationType, status, limit)
}

// CleanupExpired reaps expired records that somehow lost their TTL.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context, batchSize int) (int, error) {
	removed, err := s.repo.DeleteExpired(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired idempotency records removed", slog.Int("count", removed))
	}
	return removed, nil
}
