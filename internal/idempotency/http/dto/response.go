// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	idempotencyDomain "github.com/allisson/exactly-once/internal/idempotency/domain"
)

// RecordResponse represents an idempotency record in API responses.
type RecordResponse struct {
	IdempotencyKey string         `json:"idempotency_key"`
	OperationType  string         `json:"operation_type"`
	Service        string         `json:"service"`
	Status         string         `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	Error          *string        `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	RetryCount     int            `json:"retry_count"`
}

// MapRecordToResponse converts a domain record to an API response.
func MapRecordToResponse(record *idempotencyDomain.Record) RecordResponse {
	return RecordResponse{
		IdempotencyKey: record.IdempotencyKey,
		OperationType:  record.OperationType.String(),
		Service:        record.Service,
		Status:         string(record.Status),
		Result:         record.Result,
		Error:          record.Error,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		CompletedAt:    record.CompletedAt,
		ExpiresAt:      record.ExpiresAt,
		RetryCount:     record.RetryCount,
	}
}
