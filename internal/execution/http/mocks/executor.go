// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/execution/domain"
	"github.com/allisson/exactly-once/internal/execution/usecase"
)

// MockExecutor is a mock implementation of Executor for testing HTTP handlers.
type MockExecutor struct {
	mock.Mock
}

// ExecuteExactlyOnce mocks the ExecuteExactlyOnce method of Executor.
func (m *MockExecutor) ExecuteExactlyOnce(ctx context.Context, in usecase.Input) (*domain.Result, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

// ExecuteTradingOrder mocks the ExecuteTradingOrder method of Executor.
func (m *MockExecutor) ExecuteTradingOrder(
	ctx context.Context,
	in usecase.TradingOrderInput,
) (*domain.Result, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

// ExecuteSignalGeneration mocks the ExecuteSignalGeneration method of Executor.
func (m *MockExecutor) ExecuteSignalGeneration(
	ctx context.Context,
	in usecase.SignalInput,
) (*domain.Result, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

// CancelExecution mocks the CancelExecution method of Executor.
func (m *MockExecutor) CancelExecution(ctx context.Context, executionID string) (bool, error) {
	args := m.Called(ctx, executionID)
	return args.Bool(0), args.Error(1)
}

// GetExecution mocks the GetExecution method of Executor.
func (m *MockExecutor) GetExecution(ctx context.Context, executionID string) (*domain.Result, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}
