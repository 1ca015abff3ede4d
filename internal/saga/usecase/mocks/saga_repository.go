// Package mocks provides mock implementations for testing saga use cases.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/saga/domain"
)

// MockSagaRepository is a mock implementation of SagaRepository for testing.
type MockSagaRepository struct {
	mock.Mock
}

// Save mocks the Save method of SagaRepository.
func (m *MockSagaRepository) Save(ctx context.Context, txn *domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

// Update mocks the Update method of SagaRepository.
func (m *MockSagaRepository) Update(ctx context.Context, txn *domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

// Get mocks the Get method of SagaRepository.
func (m *MockSagaRepository) Get(ctx context.Context, sagaID string) (*domain.Transaction, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// ListByStatus mocks the ListByStatus method of SagaRepository.
func (m *MockSagaRepository) ListByStatus(
	ctx context.Context,
	status domain.TransactionStatus,
	limit int,
) ([]*domain.Transaction, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}
