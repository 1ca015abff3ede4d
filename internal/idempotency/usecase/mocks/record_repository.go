// Package mocks provides mock implementations for testing idempotency use cases.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// MockRecordRepository is a mock implementation of RecordRepository for testing.
type MockRecordRepository struct {
	mock.Mock
}

// CheckAndCreate mocks the CheckAndCreate method of RecordRepository.
func (m *MockRecordRepository) CheckAndCreate(
	ctx context.Context,
	record *domain.Record,
) (bool, *domain.Record, error) {
	args := m.Called(ctx, record)
	var existing *domain.Record
	if args.Get(1) != nil {
		existing = args.Get(1).(*domain.Record)
	}
	return args.Bool(0), existing, args.Error(2)
}

// Get mocks the Get method of RecordRepository.
func (m *MockRecordRepository) Get(ctx context.Context, key string) (*domain.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method of RecordRepository.
func (m *MockRecordRepository) UpdateStatus(
	ctx context.Context,
	key string,
	status domain.Status,
	result map[string]any,
	errMsg *string,
	expiresAt *time.Time,
) (bool, error) {
	args := m.Called(ctx, key, status, result, errMsg, expiresAt)
	return args.Bool(0), args.Error(1)
}

// Delete mocks the Delete method of RecordRepository.
func (m *MockRecordRepository) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// ListByOperation mocks the ListByOperation method of RecordRepository.
func (m *MockRecordRepository) ListByOperation(
	ctx context.Context,
	operationType domain.OperationType,
	status *domain.Status,
	limit int,
) ([]*domain.Record, error) {
	args := m.Called(ctx, operationType, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

// DeleteExpired mocks the DeleteExpired method of RecordRepository.
func (m *MockRecordRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}
