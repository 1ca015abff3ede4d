package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/outbox/domain"
)

// MockProcessor is a mock implementation of Processor for testing executor and
// HTTP consumers.
type MockProcessor struct {
	mock.Mock
}

// StoreEvent mocks the StoreEvent method of Processor.
func (m *MockProcessor) StoreEvent(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// StoreEventsBatch mocks the StoreEventsBatch method of Processor.
func (m *MockProcessor) StoreEventsBatch(ctx context.Context, events []*domain.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// Start mocks the Start method of Processor.
func (m *MockProcessor) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ProcessEvents mocks the ProcessEvents method of Processor.
func (m *MockProcessor) ProcessEvents(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ListDeadLetter mocks the ListDeadLetter method of Processor.
func (m *MockProcessor) ListDeadLetter(ctx context.Context, limit int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

// ReprocessDLQ mocks the ReprocessDLQ method of Processor.
func (m *MockProcessor) ReprocessDLQ(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// CleanupExpired mocks the CleanupExpired method of Processor.
func (m *MockProcessor) CleanupExpired(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}
