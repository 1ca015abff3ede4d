// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/saga/domain"
)

// MockCoordinator is a mock implementation of Coordinator for testing HTTP handlers.
type MockCoordinator struct {
	mock.Mock
}

// RegisterStep mocks the RegisterStep method of Coordinator.
func (m *MockCoordinator) RegisterStep(step *domain.Step) error {
	args := m.Called(step)
	return args.Error(0)
}

// Execute mocks the Execute method of Coordinator.
func (m *MockCoordinator) Execute(
	ctx context.Context,
	name string,
	stepIDs []string,
	data map[string]any,
) (*domain.Transaction, error) {
	args := m.Called(ctx, name, stepIDs, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// GetSaga mocks the GetSaga method of Coordinator.
func (m *MockCoordinator) GetSaga(ctx context.Context, sagaID string) (*domain.Transaction, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
