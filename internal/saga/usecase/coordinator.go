// Package usecase implements the saga coordinator: an orchestrator that runs
// registered steps in order and unwinds completed work through compensations
// when a step ultimately fails.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/saga/domain"
)

// Config holds the coordinator tunables.
type Config struct {
	// MaxConcurrent caps the number of sagas running at once. Execute fails
	// fast with ErrTooManySagas instead of queueing.
	MaxConcurrent int64
	// StepTimeout bounds a single step attempt when the step declares none.
	StepTimeout time.Duration
	// RetryAttempts is the per-step attempt count when the step declares none.
	RetryAttempts int
	// RetryDelay is the base backoff between attempts, doubling per retry.
	RetryDelay time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
}

// SagaCoordinator orchestrates multi-step distributed transactions with
// compensation-based rollback. Steps are registered once at startup; each
// Execute call picks an ordered subset by id.
type SagaCoordinator struct {
	config Config
	repo   SagaRepository
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu    sync.RWMutex
	steps map[string]*domain.Step
}

// NewSagaCoordinator creates a new SagaCoordinator.
func NewSagaCoordinator(config Config, repo SagaRepository, logger *slog.Logger) *SagaCoordinator {
	config.withDefaults()
	return &SagaCoordinator{
		config: config,
		repo:   repo,
		logger: logger,
		sem:    semaphore.NewWeighted(config.MaxConcurrent),
		steps:  make(map[string]*domain.Step),
	}
}

// RegisterStep adds a step definition to the coordinator's registry.
func (c *SagaCoordinator) RegisterStep(step *domain.Step) error {
	if step == nil || step.StepID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "step id is required")
	}
	if step.Action == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "step action is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.steps[step.StepID]; ok {
		return apperrors.Wrapf(apperrors.ErrConflict, "step %q already registered", step.StepID)
	}
	c.steps[step.StepID] = step
	return nil
}

// Execute runs the named saga over the given step ids. The returned
// transaction is always terminal: step failures surface as compensated or
// failed status, not as an error. An error is returned only when the saga
// could not start (unknown step, concurrency cap, persistence failure).
func (c *SagaCoordinator) Execute(
	ctx context.Context,
	name string,
	stepIDs []string,
	data map[string]any,
) (*domain.Transaction, error) {
	steps, err := c.resolveSteps(stepIDs)
	if err != nil {
		return nil, err
	}

	if !c.sem.TryAcquire(1) {
		return nil, apperrors.Wrapf(apperrors.ErrTooManySagas, "saga %q rejected", name)
	}
	defer c.sem.Release(1)

	txn := domain.NewTransaction(name, stepIDs, data)
	if err := c.repo.Save(ctx, txn); err != nil {
		return nil, err
	}

	txn.Start()
	if err := c.repo.Update(ctx, txn); err != nil {
		return nil, err
	}

	c.logger.Info("saga started",
		slog.String("saga_id", txn.SagaID.String()),
		slog.String("name", name),
		slog.Int("steps", len(steps)))

	c.run(ctx, txn, steps)
	return txn, nil
}

// GetSaga retrieves a saga transaction by id.
func (c *SagaCoordinator) GetSaga(ctx context.Context, sagaID string) (*domain.Transaction, error) {
	return c.repo.Get(ctx, sagaID)
}

func (c *SagaCoordinator) resolveSteps(stepIDs []string) ([]*domain.Step, error) {
	if len(stepIDs) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "saga requires at least one step")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	steps := make([]*domain.Step, 0, len(stepIDs))
	for _, id := range stepIDs {
		step, ok := c.steps[id]
		if !ok {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown saga step %q", id)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// run drives the transaction to a terminal state. Panics and unexpected
// coordinator errors finish the saga as failed without compensation: step
// state is unknown, and compensating an unknown state could double-undo work.
func (c *SagaCoordinator) run(ctx context.Context, txn *domain.Transaction, steps []*domain.Step) {
	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("saga panicked: %v", r)
			c.finish(ctx, txn, domain.TransactionFailed, &errMsg)
		}
	}()

	for i, step := range steps {
		txn.CurrentStep = i

		result, err := c.runStep(ctx, txn, step)
		if err != nil {
			errMsg := fmt.Sprintf("step %q failed: %v", step.StepID, err)
			c.logger.Warn("saga step exhausted retries, compensating",
				slog.String("saga_id", txn.SagaID.String()),
				slog.String("step_id", step.StepID),
				slog.Any("error", err))

			c.compensate(ctx, txn, steps[:i])
			c.finish(ctx, txn, domain.TransactionCompensated, &errMsg)
			return
		}

		txn.Context.StepResults[step.StepID] = result
		txn.CurrentStep = i + 1
		if err := c.repo.Update(ctx, txn); err != nil {
			errMsg := fmt.Sprintf("failed to persist saga progress after step %q: %v", step.StepID, err)
			c.finish(ctx, txn, domain.TransactionFailed, &errMsg)
			return
		}
	}

	c.finish(ctx, txn, domain.TransactionCompleted, nil)
	c.logger.Info("saga completed", slog.String("saga_id", txn.SagaID.String()))
}

// runStep executes a single step with per-attempt timeout and exponential
// backoff between attempts.
func (c *SagaCoordinator) runStep(
	ctx context.Context,
	txn *domain.Transaction,
	step *domain.Step,
) (map[string]any, error) {
	attempts := step.RetryAttempts
	if attempts <= 0 {
		attempts = c.config.RetryAttempts
	}
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = c.config.StepTimeout
	}
	baseDelay := step.RetryDelay
	if baseDelay <= 0 {
		baseDelay = c.config.RetryDelay
	}

	exec := txn.TrackStep(step.StepID)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := baseDelay
			for i := 1; i < attempt-1; i++ {
				delay *= 2
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				exec.Fail(ctx.Err().Error())
				return nil, ctx.Err()
			}
		}

		exec.Begin()
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := step.Action(attemptCtx, txn.Context)
		cancel()

		if err == nil {
			exec.Complete(result)
			return result, nil
		}
		lastErr = err

		c.logger.Warn("saga step attempt failed",
			slog.String("saga_id", txn.SagaID.String()),
			slog.String("step_id", step.StepID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}
	exec.Fail(lastErr.Error())
	return nil, lastErr
}

// compensate unwinds completed steps strictly in reverse order. Compensation
// errors are logged and the unwind continues: a stuck compensation must not
// prevent the remaining undo work.
func (c *SagaCoordinator) compensate(ctx context.Context, txn *domain.Transaction, completed []*domain.Step) {
	txn.Status = domain.TransactionCompensating
	if err := c.repo.Update(ctx, txn); err != nil {
		c.logger.Error("failed to persist compensating status",
			slog.String("saga_id", txn.SagaID.String()),
			slog.Any("error", err))
	}

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensation == nil {
			continue
		}

		compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.StepTimeout)
		err := step.Compensation(compCtx, txn.Context)
		cancel()

		if err != nil {
			c.logger.Error("saga compensation failed",
				slog.String("saga_id", txn.SagaID.String()),
				slog.String("step_id", step.StepID),
				slog.Any("error", err))
			continue
		}

		txn.TrackStep(step.StepID).Status = domain.StepCompensated
		c.logger.Info("saga step compensated",
			slog.String("saga_id", txn.SagaID.String()),
			slog.String("step_id", step.StepID))
	}
}

func (c *SagaCoordinator) finish(ctx context.Context, txn *domain.Transaction, status domain.TransactionStatus, errMsg *string) {
	txn.Finish(status, errMsg)
	if err := c.repo.Update(ctx, txn); err != nil {
		c.logger.Error("failed to persist terminal saga status",
			slog.String("saga_id", txn.SagaID.String()),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
}
