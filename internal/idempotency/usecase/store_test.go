package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
	"github.com/allisson/exactly-once/internal/idempotency/usecase/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest(t *testing.T) *domain.Request {
	t.Helper()

	payload := map[string]any{"symbol": "EURUSD", "side": "buy"}
	key, err := domain.NewKey(domain.OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)

	req, err := domain.NewRequest(key, payload, "client-1", 30)
	require.NoError(t, err)
	return req
}

func TestIdempotencyStore_CheckAndCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstSeenKeyCreatesPendingRecord", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)

		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(true, nil, nil).
			Once()

		record, isNew, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
		assert.Equal(t, req.IdempotencyKey, record.IdempotencyKey)
		assert.Equal(t, domain.StatusPending, record.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateKeyReturnsExistingWithoutMutation", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)

		existing := domain.NewRecord(req, 24*time.Hour)
		existing.MarkStatus(domain.StatusCompleted, map[string]any{"order_id": "abc"}, nil)

		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(false, existing, nil).
			Once()

		record, isNew, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.Same(t, existing, record)
		assert.Equal(t, domain.StatusCompleted, record.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ExpiredRecordDeletedAndRetriedOnce", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)

		expired := domain.NewRecord(req, time.Hour)
		expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)

		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(false, expired, nil).
			Once()
		mockRepo.On("Delete", ctx, expired.IdempotencyKey).
			Return(true, nil).
			Once()
		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(true, nil, nil).
			Once()

		record, isNew, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
		assert.Equal(t, domain.StatusPending, record.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RetryExhaustionReturnsConflict", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)

		expired := domain.NewRecord(req, time.Hour)
		expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)

		// The record keeps reappearing expired on both attempts.
		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(false, expired, nil).
			Twice()
		mockRepo.On("Delete", ctx, expired.IdempotencyKey).
			Return(true, nil).
			Twice()

		_, _, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidRequestRejected", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)
		req.IdempotencyKey = "short"

		_, _, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		mockRepo.AssertNotCalled(t, "CheckAndCreate")
	})

	t.Run("RepositoryErrorPropagated", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		req := testRequest(t)

		mockRepo.On("CheckAndCreate", ctx, mock.AnythingOfType("*domain.Record")).
			Return(false, nil, assert.AnError).
			Once()

		_, _, err := store.CheckAndCreate(ctx, req, 24*time.Hour)
		assert.ErrorIs(t, err, assert.AnError)
		mockRepo.AssertExpectations(t)
	})
}

func TestIdempotencyStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("CompletedWithTTLStampsExpiry", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())
		ttl := time.Hour
		result := map[string]any{"order_id": "abc"}

		mockRepo.On("UpdateStatus", ctx, "some-key", domain.StatusCompleted, result,
			(*string)(nil), mock.AnythingOfType("*time.Time")).
			Run(func(args mock.Arguments) {
				expiresAt := args.Get(5).(*time.Time)
				assert.WithinDuration(t, time.Now().UTC().Add(ttl), *expiresAt, time.Second)
			}).
			Return(true, nil).
			Once()

		updated, err := store.UpdateStatus(ctx, "some-key", domain.StatusCompleted, result, nil, &ttl)
		require.NoError(t, err)
		assert.True(t, updated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("VanishedRecordReturnsFalse", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		mockRepo.On("UpdateStatus", ctx, "gone-key", domain.StatusCompleted,
			mock.Anything, (*string)(nil), (*time.Time)(nil)).
			Return(false, nil).
			Once()

		updated, err := store.UpdateStatus(ctx, "gone-key", domain.StatusCompleted, nil, nil, nil)
		require.NoError(t, err)
		assert.False(t, updated)
		mockRepo.AssertExpectations(t)
	})
}

func TestIdempotencyStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("PresentRecordReturned", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		record := domain.NewRecord(testRequest(t), time.Hour)
		mockRepo.On("Get", ctx, record.IdempotencyKey).Return(record, nil).Once()

		got, err := store.Get(ctx, record.IdempotencyKey)
		require.NoError(t, err)
		assert.Same(t, record, got)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AbsentRecordReturnsNil", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		mockRepo.On("Get", ctx, "missing-key").Return(nil, domain.ErrRecordNotFound).Once()

		got, err := store.Get(ctx, "missing-key")
		require.NoError(t, err)
		assert.Nil(t, got)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ExpiredRecordLazilyDeleted", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		record := domain.NewRecord(testRequest(t), time.Hour)
		record.ExpiresAt = time.Now().UTC().Add(-time.Minute)

		mockRepo.On("Get", ctx, record.IdempotencyKey).Return(record, nil).Once()
		mockRepo.On("Delete", ctx, record.IdempotencyKey).Return(true, nil).Once()

		got, err := store.Get(ctx, record.IdempotencyKey)
		require.NoError(t, err)
		assert.Nil(t, got)
		mockRepo.AssertExpectations(t)
	})
}

func TestIdempotencyStore_ListByOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownOperationRejected", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		_, err := store.ListByOperation(ctx, "bogus", nil, 10)
		assert.Error(t, err)
		mockRepo.AssertNotCalled(t, "ListByOperation")
	})

	t.Run("DelegatesToRepository", func(t *testing.T) {
		mockRepo := new(mocks.MockRecordRepository)
		store := NewIdempotencyStore(mockRepo, testLogger())

		status := domain.StatusCompleted
		records := []*domain.Record{domain.NewRecord(testRequest(t), time.Hour)}
		mockRepo.On("ListByOperation", ctx, domain.OperationOrderSubmit, &status, 10).
			Return(records, nil).
			Once()

		got, err := store.ListByOperation(ctx, domain.OperationOrderSubmit, &status, 10)
		require.NoError(t, err)
		assert.Equal(t, records, got)
		mockRepo.AssertExpectations(t)
	})
}

func TestIdempotencyStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()

	mockRepo := new(mocks.MockRecordRepository)
	store := NewIdempotencyStore(mockRepo, testLogger())

	mockRepo.On("DeleteExpired", ctx, 100).Return(7, nil).Once()

	removed, err := store.CleanupExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, removed)
	mockRepo.AssertExpectations(t)
}
