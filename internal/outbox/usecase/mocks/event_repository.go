// Package mocks provides mock implementations for testing outbox use cases.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/outbox/domain"
)

// MockEventRepository is a mock implementation of EventRepository for testing.
type MockEventRepository struct {
	mock.Mock
}

// Create mocks the Create method of EventRepository.
func (m *MockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// CreateBatch mocks the CreateBatch method of EventRepository.
func (m *MockEventRepository) CreateBatch(ctx context.Context, events []*domain.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// GetReadyEvents mocks the GetReadyEvents method of EventRepository.
func (m *MockEventRepository) GetReadyEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

// Update mocks the Update method of EventRepository.
func (m *MockEventRepository) Update(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ListDeadLetter mocks the ListDeadLetter method of EventRepository.
func (m *MockEventRepository) ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

// ResetForRetry mocks the ResetForRetry method of EventRepository.
func (m *MockEventRepository) ResetForRetry(ctx context.Context, ids []uuid.UUID) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

// DeleteExpired mocks the DeleteExpired method of EventRepository.
func (m *MockEventRepository) DeleteExpired(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}
