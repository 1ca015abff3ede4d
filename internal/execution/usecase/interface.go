// Package usecase implements the exactly-once executor: it composes the
// idempotency store, the distributed lock and the transactional outbox into a
// single "execute exactly once" contract with timeout, retry and cancellation
// semantics.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/exactly-once/internal/execution/domain"
	idempotencyDomain "github.com/allisson/exactly-once/internal/idempotency/domain"
	outboxDomain "github.com/allisson/exactly-once/internal/outbox/domain"
)

// OperationFn is the injected business operation. It is invoked at most once per
// idempotency key; errors it returns are converted to terminal FAILED results
// and never escape the executor boundary.
type OperationFn func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Input describes one exactly-once execution request.
type Input struct {
	Operation OperationFn
	Key       idempotencyDomain.Key
	Payload   map[string]any
	ClientID  string
	// Timeout bounds the operation invocation; zero means the configured default.
	Timeout time.Duration
	// Events are stored atomically with operation completion and published
	// asynchronously by the outbox processor.
	Events []*outboxDomain.Event
}

// TradingOrderInput carries the business fields for an order submission. Key
// derivation normalizes them so equivalent orders deduplicate.
type TradingOrderInput struct {
	Service   string
	Symbol    string
	Side      string
	Quantity  float64
	Price     float64
	ClientID  string
	Operation OperationFn
}

// SignalInput carries the business fields for signal generation.
type SignalInput struct {
	Service   string
	Symbol    string
	Timeframe string
	Strategy  string
	ClientID  string
	Operation OperationFn
}

// ExecutionRepository defines execution result persistence operations.
type ExecutionRepository interface {
	Upsert(ctx context.Context, result *domain.Result) error
	Get(ctx context.Context, executionID string) (*domain.Result, error)
	Cancel(ctx context.Context, executionID string, errMsg string) (bool, error)
}

// LockRepository defines the distributed lock primitive: an atomic
// set-if-not-exists with TTL, released only by its owner.
type LockRepository interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

// Executor defines the exactly-once execution contract.
type Executor interface {
	// ExecuteExactlyOnce runs the operation at most once per idempotency key.
	// Duplicate calls observe the original outcome; concurrent duplicates
	// converge on the winner's result. Always returns a terminal result for
	// business failures instead of an error.
	ExecuteExactlyOnce(ctx context.Context, in Input) (*domain.Result, error)

	// ExecuteTradingOrder derives a normalized order key and executes with a
	// 30 second timeout.
	ExecuteTradingOrder(ctx context.Context, in TradingOrderInput) (*domain.Result, error)

	// ExecuteSignalGeneration derives a signal key and executes with a 60
	// second timeout.
	ExecuteSignalGeneration(ctx context.Context, in SignalInput) (*domain.Result, error)

	// CancelExecution cancels a pending or executing operation. Returns false
	// when the execution was already terminal or does not exist.
	CancelExecution(ctx context.Context, executionID string) (bool, error)

	// GetExecution retrieves an execution record by its deterministic id.
	GetExecution(ctx context.Context, executionID string) (*domain.Result, error)
}
