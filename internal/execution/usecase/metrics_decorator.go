package usecase

import (
	"context"
	"time"

	"github.com/allisson/exactly-once/internal/execution/domain"
	"github.com/allisson/exactly-once/internal/metrics"
)

// executorWithMetrics decorates Executor with metrics instrumentation.
type executorWithMetrics struct {
	next    Executor
	metrics metrics.BusinessMetrics
}

// NewExecutorWithMetrics wraps an Executor with metrics recording. The metric
// status is the terminal execution status, so timeouts and failures are
// distinguishable on dashboards.
func NewExecutorWithMetrics(executor Executor, m metrics.BusinessMetrics) Executor {
	return &executorWithMetrics{
		next:    executor,
		metrics: m,
	}
}

// ExecuteExactlyOnce records metrics for exactly-once executions.
func (e *executorWithMetrics) ExecuteExactlyOnce(ctx context.Context, in Input) (*domain.Result, error) {
	start := time.Now()
	result, err := e.next.ExecuteExactlyOnce(ctx, in)

	e.record(ctx, "execute_exactly_once", result, err, start)
	return result, err
}

// ExecuteTradingOrder records metrics for trading order executions.
func (e *executorWithMetrics) ExecuteTradingOrder(ctx context.Context, in TradingOrderInput) (*domain.Result, error) {
	start := time.Now()
	result, err := e.next.ExecuteTradingOrder(ctx, in)

	e.record(ctx, "execute_trading_order", result, err, start)
	return result, err
}

// ExecuteSignalGeneration records metrics for signal generation executions.
func (e *executorWithMetrics) ExecuteSignalGeneration(ctx context.Context, in SignalInput) (*domain.Result, error) {
	start := time.Now()
	result, err := e.next.ExecuteSignalGeneration(ctx, in)

	e.record(ctx, "execute_signal_generation", result, err, start)
	return result, err
}

// CancelExecution records metrics for cancellation requests.
func (e *executorWithMetrics) CancelExecution(ctx context.Context, executionID string) (bool, error) {
	start := time.Now()
	cancelled, err := e.next.CancelExecution(ctx, executionID)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "execution", "cancel_execution", status)
	e.metrics.RecordDuration(ctx, "execution", "cancel_execution", time.Since(start), status)

	return cancelled, err
}

// GetExecution records metrics for execution lookups.
func (e *executorWithMetrics) GetExecution(ctx context.Context, executionID string) (*domain.Result, error) {
	start := time.Now()
	result, err := e.next.GetExecution(ctx, executionID)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "execution", "get_execution", status)
	e.metrics.RecordDuration(ctx, "execution", "get_execution", time.Since(start), status)

	return result, err
}

func (e *executorWithMetrics) record(
	ctx context.Context,
	operation string,
	result *domain.Result,
	err error,
	start time.Time,
) {
	status := "error"
	if err == nil && result != nil {
		status = string(result.Status)
	}

	e.metrics.RecordOperation(ctx, "execution", operation, status)
	e.metrics.RecordDuration(ctx, "execution", operation, time.Since(start), status)
}
