// Package domain defines execution result entities for the exactly-once
// executor. Execution identity is deterministic: re-invocation with identical
// inputs maps to the same execution record.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	idempotencyDomain "github.com/allisson/exactly-once/internal/idempotency/domain"
)

// Status represents the lifecycle state of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. Timeout is deliberately distinct
// from failed so callers can apply different retry heuristics.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// NewExecutionID derives the deterministic execution identifier for an
// operation/key pair.
func NewExecutionID(operationType idempotencyDomain.OperationType, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s", operationType, idempotencyKey)
}

// Result is the stored outcome of an exactly-once execution.
type Result struct {
	ExecutionID     string
	OperationType   idempotencyDomain.OperationType
	Status          Status
	Result          map[string]any
	Error           *string
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
	IdempotencyKey  string
	RetryCount      int
	EventsPublished []uuid.UUID
}

// NewResult builds a pending execution record.
func NewResult(operationType idempotencyDomain.OperationType, idempotencyKey string) *Result {
	return &Result{
		ExecutionID:    NewExecutionID(operationType, idempotencyKey),
		OperationType:  operationType,
		Status:         StatusPending,
		StartedAt:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// MarkTerminal finishes the execution with the given terminal status, stamping
// completion time and duration.
func (r *Result) MarkTerminal(status Status, result map[string]any, errMsg *string) {
	now := time.Now().UTC()
	duration := now.Sub(r.StartedAt).Seconds()

	r.Status = status
	r.Result = result
	r.Error = errMsg
	r.CompletedAt = &now
	r.DurationSeconds = &duration
}
