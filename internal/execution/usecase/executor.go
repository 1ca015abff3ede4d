package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/exactly-once/internal/database"
	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/execution/domain"
	idempotencyDomain "github.com/allisson/exactly-once/internal/idempotency/domain"
	idempotencyUsecase "github.com/allisson/exactly-once/internal/idempotency/usecase"
	outboxDomain "github.com/allisson/exactly-once/internal/outbox/domain"
	outboxUsecase "github.com/allisson/exactly-once/internal/outbox/usecase"
)

// Default operation timeouts for the domain wrappers. Orders must be fast;
// signals may involve heavier computation.
const (
	tradingOrderTimeout     = 30 * time.Second
	signalGenerationTimeout = 60 * time.Second
)

// Config holds executor configuration.
type Config struct {
	// LockTTL bounds how long a crashed holder can wedge a key before the lock
	// self-heals. Independent of the operation timeout.
	LockTTL time.Duration
	// PollInterval is how often duplicate callers re-check the winner's record.
	PollInterval time.Duration
	// DefaultTimeout bounds operations whose input does not specify one.
	DefaultTimeout time.Duration
	// RecordTTL is the idempotency record's deduplication window.
	RecordTTL time.Duration
}

// ExactlyOnceExecutor implements Executor. All cross-process coordination goes
// through the store's atomic primitives; no in-memory lock is relied on for
// correctness.
type ExactlyOnceExecutor struct {
	config    Config
	txManager database.TxManager
	execRepo  ExecutionRepository
	lockRepo  LockRepository
	store     idempotencyUsecase.Store
	outbox    outboxUsecase.Processor
	logger    *slog.Logger
}

// NewExactlyOnceExecutor creates a new ExactlyOnceExecutor.
func NewExactlyOnceExecutor(
	config Config,
	txManager database.TxManager,
	execRepo ExecutionRepository,
	lockRepo LockRepository,
	store idempotencyUsecase.Store,
	outbox outboxUsecase.Processor,
	logger *slog.Logger,
) *ExactlyOnceExecutor {
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if config.RecordTTL <= 0 {
		config.RecordTTL = 24 * time.Hour
	}
	return &ExactlyOnceExecutor{
		config:    config,
		txManager: txManager,
		execRepo:  execRepo,
		lockRepo:  lockRepo,
		store:     store,
		outbox:    outbox,
		logger:    logger,
	}
}

// ExecuteExactlyOnce runs the operation at most once per idempotency key.
func (e *ExactlyOnceExecutor) ExecuteExactlyOnce(ctx context.Context, in Input) (*domain.Result, error) {
	if err := in.Key.Validate(); err != nil {
		return nil, err
	}
	if in.Operation == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "operation function is required")
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	key := in.Key.String()
	executionID := domain.NewExecutionID(in.Key.OperationType, key)

	// Duplicate-call short circuit: a terminal record is the original outcome.
	existing, err := e.execRepo.Get(ctx, executionID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case domain.StatusCompleted, domain.StatusCancelled:
			return existing, nil
		case domain.StatusExecuting, domain.StatusPending:
			return e.waitForResult(ctx, executionID, timeout)
		}
	}

	owner := uuid.Must(uuid.NewV7()).String()
	acquired, err := e.lockRepo.Acquire(ctx, executionID, owner, e.config.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// Another process claimed the key; converge on its outcome.
		return e.waitForResult(ctx, executionID, timeout)
	}
	defer func() {
		// Unconditional release: a lock held past a failure would wedge the key
		// until TTL expiry.
		if err := e.lockRepo.Release(context.WithoutCancel(ctx), executionID, owner); err != nil {
			e.logger.Error("failed to release execution lock",
				slog.String("execution_id", executionID),
				slog.Any("error", err),
			)
		}
	}()

	// Re-read under the lock: the previous holder may have reached a terminal
	// state between the first read and the acquire, and its outcome must not
	// be overwritten by a second run.
	existing, err = e.execRepo.Get(ctx, executionID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	retryCount := 0
	if existing != nil {
		switch existing.Status {
		case domain.StatusCompleted, domain.StatusCancelled:
			return existing, nil
		case domain.StatusFailed, domain.StatusTimeout:
			// FAILED and TIMEOUT are retry-eligible; the attempt counter carries forward.
			retryCount = existing.RetryCount + 1
		}
	}

	return e.executeLocked(ctx, in, executionID, key, retryCount, timeout)
}

// executeLocked performs the operation while holding the distributed lock.
func (e *ExactlyOnceExecutor) executeLocked(
	ctx context.Context,
	in Input,
	executionID, key string,
	retryCount int,
	timeout time.Duration,
) (*domain.Result, error) {
	result := domain.NewResult(in.Key.OperationType, key)
	result.Status = domain.StatusExecuting
	result.RetryCount = retryCount

	if err := e.execRepo.Upsert(ctx, result); err != nil {
		return nil, err
	}

	req, err := idempotencyDomain.NewRequest(in.Key, in.Payload, in.ClientID, int(timeout.Seconds()))
	if err != nil {
		return nil, err
	}
	if _, _, err := e.store.CheckAndCreate(ctx, req, e.config.RecordTTL); err != nil {
		return nil, err
	}
	if _, err := e.store.UpdateStatus(ctx, key, idempotencyDomain.StatusInProgress, nil, nil, nil); err != nil {
		return nil, err
	}

	e.logger.Info("executing operation",
		slog.String("execution_id", executionID),
		slog.String("operation_type", string(in.Key.OperationType)),
		slog.Int("retry_count", retryCount),
	)

	out, opErr := e.invoke(ctx, in.Operation, in.Payload, timeout)

	switch {
	case opErr == nil:
		return e.complete(ctx, in, result, key, executionID, out)
	case errors.Is(opErr, context.DeadlineExceeded):
		// A timeout is a distinguishable terminal status, never conflated with
		// a logical failure.
		return e.fail(ctx, result, key, domain.StatusTimeout,
			fmt.Sprintf("operation timed out after %s", timeout))
	default:
		return e.fail(ctx, result, key, domain.StatusFailed, opErr.Error())
	}
}

// invoke runs the operation under a hard timeout. A panic in user code is
// converted to an error; it must never escape the executor boundary.
func (e *ExactlyOnceExecutor) invoke(
	ctx context.Context,
	operation OperationFn,
	payload map[string]any,
	timeout time.Duration,
) (map[string]any, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out map[string]any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		out, err := operation(opCtx, payload)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-opCtx.Done():
		return nil, opCtx.Err()
	}
}

// complete records success: the execution result and the outbox events are
// written in one transaction, so a crash between the two cannot be observed as
// "completed but no event queued".
func (e *ExactlyOnceExecutor) complete(
	ctx context.Context,
	in Input,
	result *domain.Result,
	key, executionID string,
	out map[string]any,
) (*domain.Result, error) {
	result.MarkTerminal(domain.StatusCompleted, out, nil)

	for _, event := range in.Events {
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}
		event.Metadata["execution_id"] = executionID
		event.Metadata["idempotency_key"] = key
		event.IdempotencyKey = &key
		result.EventsPublished = append(result.EventsPublished, event.ID)
	}

	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := e.execRepo.Upsert(ctx, result); err != nil {
			return err
		}
		return e.outbox.StoreEventsBatch(ctx, in.Events)
	})
	if err != nil {
		return nil, err
	}

	if updated, err := e.store.UpdateStatus(
		ctx, key, idempotencyDomain.StatusCompleted, out, nil, nil,
	); err != nil {
		return nil, err
	} else if !updated {
		e.logger.Warn("idempotency record vanished before completion",
			slog.String("idempotency_key", key))
	}

	e.logger.Info("operation completed",
		slog.String("execution_id", executionID),
		slog.Int("events_published", len(result.EventsPublished)),
	)
	return result, nil
}

// fail records a terminal failure or timeout, mirrored into the idempotency
// store as FAILED so the outcome is never re-reported as successful.
func (e *ExactlyOnceExecutor) fail(
	ctx context.Context,
	result *domain.Result,
	key string,
	status domain.Status,
	errMsg string,
) (*domain.Result, error) {
	result.MarkTerminal(status, nil, &errMsg)

	if err := e.execRepo.Upsert(ctx, result); err != nil {
		return nil, err
	}
	if _, err := e.store.UpdateStatus(
		ctx, key, idempotencyDomain.StatusFailed, nil, &errMsg, nil,
	); err != nil {
		return nil, err
	}

	e.logger.Warn("operation did not complete",
		slog.String("execution_id", result.ExecutionID),
		slog.String("status", string(status)),
		slog.String("error", errMsg),
	)
	return result, nil
}

// waitForResult polls the execution record until it reaches a terminal state or
// the wait budget runs out. Duplicate concurrent callers converge on the
// winner's outcome instead of double-executing.
func (e *ExactlyOnceExecutor) waitForResult(
	ctx context.Context,
	executionID string,
	timeout time.Duration,
) (*domain.Result, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		result, err := e.execRepo.Get(ctx, executionID)
		if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if result != nil && result.Status.Terminal() {
			return result, nil
		}

		if time.Now().After(deadline) {
			return e.timeoutWaiting(executionID, timeout), nil
		}

		select {
		case <-ctx.Done():
			return e.timeoutWaiting(executionID, timeout), nil
		case <-ticker.C:
		}
	}
}

// timeoutWaiting builds the synthetic timeout outcome for a duplicate caller.
// It is not persisted: the winner's record stays authoritative.
func (e *ExactlyOnceExecutor) timeoutWaiting(executionID string, timeout time.Duration) *domain.Result {
	errMsg := fmt.Sprintf("timed out after %s waiting for concurrent execution", timeout)
	now := time.Now().UTC()
	duration := timeout.Seconds()
	return &domain.Result{
		ExecutionID:     executionID,
		Status:          domain.StatusTimeout,
		Error:           &errMsg,
		StartedAt:       now.Add(-timeout),
		CompletedAt:     &now,
		DurationSeconds: &duration,
	}
}

// ExecuteTradingOrder derives the normalized order key and executes with the
// order timeout, emitting an order-submitted event on success.
func (e *ExactlyOnceExecutor) ExecuteTradingOrder(ctx context.Context, in TradingOrderInput) (*domain.Result, error) {
	key, err := idempotencyDomain.NewTradingOrderKey(in.Service, in.Symbol, in.Side, in.Quantity, in.Price)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"symbol":   in.Symbol,
		"side":     in.Side,
		"quantity": in.Quantity,
		"price":    in.Price,
	}

	event := outboxDomain.NewEvent(
		"trading.order.submitted", key.Hash, "trading_order", "trading-orders", payload)
	event.Priority = outboxDomain.PriorityHigh

	return e.ExecuteExactlyOnce(ctx, Input{
		Operation: in.Operation,
		Key:       key,
		Payload:   payload,
		ClientID:  in.ClientID,
		Timeout:   tradingOrderTimeout,
		Events:    []*outboxDomain.Event{event},
	})
}

// ExecuteSignalGeneration derives the signal key and executes with the signal
// timeout, emitting a signal-generated event on success.
func (e *ExactlyOnceExecutor) ExecuteSignalGeneration(ctx context.Context, in SignalInput) (*domain.Result, error) {
	key, err := idempotencyDomain.NewSignalKey(in.Service, in.Symbol, in.Timeframe, in.Strategy)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"symbol":    in.Symbol,
		"timeframe": in.Timeframe,
		"strategy":  in.Strategy,
	}

	event := outboxDomain.NewEvent(
		"signal.generated", key.Hash, "trading_signal", "trading-signals", payload)

	return e.ExecuteExactlyOnce(ctx, Input{
		Operation: in.Operation,
		Key:       key,
		Payload:   payload,
		ClientID:  in.ClientID,
		Timeout:   signalGenerationTimeout,
		Events:    []*outboxDomain.Event{event},
	})
}

// CancelExecution cancels a pending or executing operation and mirrors the
// cancellation into the idempotency store as FAILED, so a cancelled operation
// is never re-reported as successful.
func (e *ExactlyOnceExecutor) CancelExecution(ctx context.Context, executionID string) (bool, error) {
	existing, err := e.execRepo.Get(ctx, executionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	cancelled, err := e.execRepo.Cancel(ctx, executionID, "cancelled by user")
	if err != nil || !cancelled {
		return false, err
	}

	errMsg := "cancelled by user"
	if _, err := e.store.UpdateStatus(
		ctx, existing.IdempotencyKey, idempotencyDomain.StatusFailed, nil, &errMsg, nil,
	); err != nil {
		return false, err
	}

	e.logger.Info("execution cancelled", slog.String("execution_id", executionID))
	return true, nil
}

// GetExecution retrieves an execution record by its deterministic id.
func (e *ExactlyOnceExecutor) GetExecution(ctx context.Context, executionID string) (*domain.Result, error) {
	return e.execRepo.Get(ctx, executionID)
}
