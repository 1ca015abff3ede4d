package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db, mock
}

func recordRows(record *domain.Record, resultJSON any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"idempotency_key", "operation_type", "service", "status", "result", "error",
		"created_at", "updated_at", "completed_at", "expires_at", "retry_count",
	}).AddRow(
		record.IdempotencyKey,
		string(record.OperationType),
		record.Service,
		string(record.Status),
		resultJSON,
		record.Error,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
		record.ExpiresAt,
		record.RetryCount,
	)
}

func newTestRecord() *domain.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Record{
		IdempotencyKey: "order_submit:trading-api:abc123def456",
		OperationType:  domain.OperationOrderSubmit,
		Service:        "trading-api",
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
}

func TestPostgreSQLRecordRepository_CheckAndCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("WinsInsert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)
		record := newTestRecord()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO idempotency_records")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, existing, err := repo.CheckAndCreate(ctx, record)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Nil(t, existing)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LosesToExistingRow", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)
		record := newTestRecord()

		held := newTestRecord()
		held.Status = domain.StatusCompleted

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO idempotency_records")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_records")).
			WithArgs(record.IdempotencyKey).
			WillReturnRows(recordRows(held, `{"order_id":"ord-1"}`))

		created, existing, err := repo.CheckAndCreate(ctx, record)
		require.NoError(t, err)
		assert.False(t, created)
		require.NotNil(t, existing)
		assert.Equal(t, domain.StatusCompleted, existing.Status)
		assert.Equal(t, map[string]any{"order_id": "ord-1"}, existing.Result)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertErrorPropagated", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO idempotency_records")).
			WillReturnError(sql.ErrConnDone)

		created, existing, err := repo.CheckAndCreate(ctx, newTestRecord())
		require.Error(t, err)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.False(t, created)
		assert.Nil(t, existing)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLRecordRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)
		record := newTestRecord()

		mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_records")).
			WithArgs(record.IdempotencyKey).
			WillReturnRows(recordRows(record, nil))

		got, err := repo.Get(ctx, record.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, record.IdempotencyKey, got.IdempotencyKey)
		assert.Equal(t, domain.OperationOrderSubmit, got.OperationType)
		assert.Nil(t, got.Result)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_records")).
			WithArgs("order_submit:trading-api:missing00000").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.Get(ctx, "order_submit:trading-api:missing00000")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLRecordRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("RowUpdated", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)
		record := newTestRecord()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE idempotency_records")).
			WithArgs(
				string(domain.StatusCompleted),
				`{"order_id":"ord-1"}`,
				nil,
				nil,
				record.IdempotencyKey,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		updated, err := repo.UpdateStatus(
			ctx, record.IdempotencyKey, domain.StatusCompleted,
			map[string]any{"order_id": "ord-1"}, nil, nil,
		)
		require.NoError(t, err)
		assert.True(t, updated)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingRowReturnsFalse", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRecordRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE idempotency_records")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		updated, err := repo.UpdateStatus(
			ctx, "order_submit:trading-api:vanished0000", domain.StatusFailed,
			nil, nil, nil,
		)
		require.NoError(t, err)
		assert.False(t, updated)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLRecordRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRecordRepository(db)
	record := newTestRecord()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM idempotency_records")).
		WithArgs(record.IdempotencyKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(ctx, record.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLRecordRepository_ListByOperation(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRecordRepository(db)

	first := newTestRecord()
	second := newTestRecord()
	second.IdempotencyKey = "order_submit:trading-api:def456abc123"

	rows := recordRows(first, nil)
	rows.AddRow(
		second.IdempotencyKey, string(second.OperationType), second.Service,
		string(second.Status), nil, second.Error,
		second.CreatedAt, second.UpdatedAt, second.CompletedAt,
		second.ExpiresAt, second.RetryCount,
	)

	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_records")).
		WithArgs(string(domain.OperationOrderSubmit), nil, 50).
		WillReturnRows(rows)

	records, err := repo.ListByOperation(ctx, domain.OperationOrderSubmit, nil, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.IdempotencyKey, records[0].IdempotencyKey)
	assert.Equal(t, second.IdempotencyKey, records[1].IdempotencyKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLRecordRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM idempotency_records")).
		WithArgs(100).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
