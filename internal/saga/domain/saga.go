// Package domain defines the saga domain models: compensable steps, the shared
// execution context, and the saga transaction state machine.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a saga transaction.
type TransactionStatus string

const (
	TransactionPending      TransactionStatus = "pending"
	TransactionRunning      TransactionStatus = "running"
	TransactionCompleted    TransactionStatus = "completed"
	TransactionCompensating TransactionStatus = "compensating"
	TransactionCompensated  TransactionStatus = "compensated"
	// TransactionFailed marks an unexpected coordinator-level error. No
	// compensation was attempted: step state is unknown, and compensating an
	// unknown state could double-undo work.
	TransactionFailed TransactionStatus = "failed"
)

// Terminal reports whether the transaction reached a final state.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionCompleted, TransactionCompensated, TransactionFailed:
		return true
	default:
		return false
	}
}

// StepStatus represents the runtime state of a single step execution.
type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepRunning     StepStatus = "running"
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepCompensated StepStatus = "compensated"
)

// Action performs a step's forward work. It receives the full shared context,
// including earlier steps' results; ordering and side-effect visibility between
// steps is the step author's contract, not the coordinator's.
type Action func(ctx context.Context, sc *Context) (map[string]any, error)

// Compensation undoes a previously completed step during rollback.
type Compensation func(ctx context.Context, sc *Context) error

// Step is registration-time metadata for a compensable unit of work.
type Step struct {
	StepID        string
	Name          string
	Action        Action
	Compensation  Compensation
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// StepExecution tracks the mutable runtime state of one step within a transaction.
// It is persisted with the saga context, so recovery and observers see per-step
// progress, attempt counts and timings.
type StepExecution struct {
	StepID       string         `json:"step_id"`
	Status       StepStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Error        *string        `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	AttemptCount int            `json:"attempt_count"`
}

// Begin marks the start of a forward attempt. The first attempt stamps StartedAt.
func (e *StepExecution) Begin() {
	if e.StartedAt == nil {
		now := time.Now().UTC()
		e.StartedAt = &now
	}
	e.Status = StepRunning
	e.AttemptCount++
}

// Complete records a successful attempt and its result.
func (e *StepExecution) Complete(result map[string]any) {
	now := time.Now().UTC()
	e.Status = StepCompleted
	e.Result = result
	e.CompletedAt = &now
}

// Fail records that the step's attempts were exhausted.
func (e *StepExecution) Fail(errMsg string) {
	now := time.Now().UTC()
	e.Status = StepFailed
	e.Error = &errMsg
	e.CompletedAt = &now
}

// Context is the shared state flowing through a saga's steps. Steps are not
// isolated transactions: every action sees all earlier results.
type Context struct {
	SagaID         uuid.UUID                 `json:"saga_id"`
	Data           map[string]any            `json:"data"`
	StepResults    map[string]map[string]any `json:"step_results"`
	StepExecutions map[string]*StepExecution `json:"step_executions"`
}

// Transaction is a persisted saga execution.
type Transaction struct {
	SagaID  uuid.UUID
	Name    string
	Steps   []string
	Status  TransactionStatus
	Context *Context
	// CurrentStep advances strictly forward while running; on failure it is the
	// compensation start boundary (steps [0, CurrentStep) unwind in reverse).
	CurrentStep int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       *string
}

// NewTransaction builds a pending saga transaction over the given steps.
func NewTransaction(name string, stepIDs []string, data map[string]any) *Transaction {
	sagaID := uuid.Must(uuid.NewV7())
	if data == nil {
		data = map[string]any{}
	}
	return &Transaction{
		SagaID: sagaID,
		Name:   name,
		Steps:  stepIDs,
		Status: TransactionPending,
		Context: &Context{
			SagaID:         sagaID,
			Data:           data,
			StepResults:    map[string]map[string]any{},
			StepExecutions: map[string]*StepExecution{},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// TrackStep returns the runtime tracking entry for a step, creating a pending
// entry on first use.
func (t *Transaction) TrackStep(stepID string) *StepExecution {
	if t.Context.StepExecutions == nil {
		t.Context.StepExecutions = map[string]*StepExecution{}
	}
	exec, ok := t.Context.StepExecutions[stepID]
	if !ok {
		exec = &StepExecution{StepID: stepID, Status: StepPending}
		t.Context.StepExecutions[stepID] = exec
	}
	return exec
}

// Start transitions the transaction to running.
func (t *Transaction) Start() {
	now := time.Now().UTC()
	t.Status = TransactionRunning
	t.StartedAt = &now
}

// Finish applies a terminal status, stamping completion time.
func (t *Transaction) Finish(status TransactionStatus, errMsg *string) {
	now := time.Now().UTC()
	t.Status = status
	t.CompletedAt = &now
	t.Error = errMsg
}
