// Package mocks provides mock implementations for testing execution use cases.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/execution/domain"
)

// MockExecutionRepository is a mock implementation of ExecutionRepository for testing.
type MockExecutionRepository struct {
	mock.Mock
}

// Upsert mocks the Upsert method of ExecutionRepository.
func (m *MockExecutionRepository) Upsert(ctx context.Context, result *domain.Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// Get mocks the Get method of ExecutionRepository.
func (m *MockExecutionRepository) Get(ctx context.Context, executionID string) (*domain.Result, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

// Cancel mocks the Cancel method of ExecutionRepository.
func (m *MockExecutionRepository) Cancel(ctx context.Context, executionID string, errMsg string) (bool, error) {
	args := m.Called(ctx, executionID, errMsg)
	return args.Bool(0), args.Error(1)
}

// MockLockRepository is a mock implementation of LockRepository for testing.
type MockLockRepository struct {
	mock.Mock
}

// Acquire mocks the Acquire method of LockRepository.
func (m *MockLockRepository) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, owner, ttl)
	return args.Bool(0), args.Error(1)
}

// Release mocks the Release method of LockRepository.
func (m *MockLockRepository) Release(ctx context.Context, name, owner string) error {
	args := m.Called(ctx, name, owner)
	return args.Error(0)
}
