package dto

import (
	"time"

	executionDomain "github.com/allisson/exactly-once/internal/execution/domain"
)

// ExecutionResponse represents an execution result in API responses.
type ExecutionResponse struct {
	ExecutionID     string         `json:"execution_id"`
	OperationType   string         `json:"operation_type"`
	Status          string         `json:"status"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *string        `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	IdempotencyKey  string         `json:"idempotency_key"`
	RetryCount      int            `json:"retry_count"`
	EventsPublished []string       `json:"events_published,omitempty"`
}

// MapResultToResponse converts a domain execution result to an API response.
func MapResultToResponse(result *executionDomain.Result) ExecutionResponse {
	var events []string
	for _, id := range result.EventsPublished {
		events = append(events, id.String())
	}

	return ExecutionResponse{
		ExecutionID:     result.ExecutionID,
		OperationType:   result.OperationType.String(),
		Status:          string(result.Status),
		Result:          result.Result,
		Error:           result.Error,
		StartedAt:       result.StartedAt,
		CompletedAt:     result.CompletedAt,
		DurationSeconds: result.DurationSeconds,
		IdempotencyKey:  result.IdempotencyKey,
		RetryCount:      result.RetryCount,
		EventsPublished: events,
	}
}
