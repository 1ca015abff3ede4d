package domain

import (
	"github.com/allisson/exactly-once/internal/errors"
)

// Idempotency domain errors.
var (
	// ErrUnknownOperationType indicates an operation type outside the closed enumeration.
	ErrUnknownOperationType = errors.Wrap(errors.ErrInvalidInput, "unknown operation type")

	// ErrRecordNotFound indicates no idempotency record exists for the given key.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "idempotency record not found")
)
