package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// MockStore is a mock implementation of Store for testing executor and
// middleware consumers.
type MockStore struct {
	mock.Mock
}

// CheckAndCreate mocks the CheckAndCreate method of Store.
func (m *MockStore) CheckAndCreate(
	ctx context.Context,
	req *domain.Request,
	ttl time.Duration,
) (*domain.Record, bool, error) {
	args := m.Called(ctx, req, ttl)
	var record *domain.Record
	if args.Get(0) != nil {
		record = args.Get(0).(*domain.Record)
	}
	return record, args.Bool(1), args.Error(2)
}

// UpdateStatus mocks the UpdateStatus method of Store.
func (m *MockStore) UpdateStatus(
	ctx context.Context,
	key string,
	status domain.Status,
	result map[string]any,
	errMsg *string,
	ttl *time.Duration,
) (bool, error) {
	args := m.Called(ctx, key, status, result, errMsg, ttl)
	return args.Bool(0), args.Error(1)
}

// Get mocks the Get method of Store.
func (m *MockStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

// Delete mocks the Delete method of Store.
func (m *MockStore) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// ListByOperation mocks the ListByOperation method of Store.
func (m *MockStore) ListByOperation(
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

// CleanupExpired mocks the CleanupExpired method of Store.
func (m *MockStore) CleanupExpired(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}
