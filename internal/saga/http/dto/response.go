package dto

import (
	"time"

	sagaDomain "github.com/allisson/exactly-once/internal/saga/domain"
)

// StepExecutionResponse represents one step's runtime state in API responses.
type StepExecutionResponse struct {
	StepID       string         `json:"step_id"`
	Status       string         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Error        *string        `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	AttemptCount int            `json:"attempt_count"`
}

// SagaResponse represents a saga transaction in API responses.
type SagaResponse struct {
	SagaID         string                  `json:"saga_id"`
	Name           string                  `json:"name"`
	Status         string                  `json:"status"`
	Steps          []string                `json:"steps"`
	CurrentStep    int                     `json:"current_step"`
	StepExecutions []StepExecutionResponse `json:"step_executions"`
	CreatedAt      time.Time               `json:"created_at"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	Error          *string                 `json:"error,omitempty"`
}

// MapTransactionToResponse converts a domain saga transaction to an API
// response. Step executions are listed in the transaction's step order.
func MapTransactionToResponse(txn *sagaDomain.Transaction) SagaResponse {
	var executions []StepExecutionResponse
	for _, stepID := range txn.Steps {
		exec, ok := txn.Context.StepExecutions[stepID]
		if !ok {
			continue
		}
		executions = append(executions, StepExecutionResponse{
			StepID:       exec.StepID,
			Status:       string(exec.Status),
			Result:       exec.Result,
			Error:        exec.Error,
			StartedAt:    exec.StartedAt,
			CompletedAt:  exec.CompletedAt,
			AttemptCount: exec.AttemptCount,
		})
	}

	return SagaResponse{
		SagaID:         txn.SagaID.String(),
		Name:           txn.Name,
		Status:         string(txn.Status),
		Steps:          txn.Steps,
		CurrentStep:    txn.CurrentStep,
		StepExecutions: executions,
		CreatedAt:      txn.CreatedAt,
		StartedAt:      txn.StartedAt,
		CompletedAt:    txn.CompletedAt,
		Error:          txn.Error,
	}
}
