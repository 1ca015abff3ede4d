package domain

import (
	"time"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/exactly-once/internal/errors"
)

// Request is an inbound idempotent operation request.
type Request struct {
	IdempotencyKey string
	OperationType  OperationType
	Service        string
	Payload        map[string]any
	ClientID       string
	TimeoutSeconds int
	CreatedAt      time.Time
}

// Validate checks the request invariants.
func (r *Request) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.IdempotencyKey,
			validation.Required,
			validation.Length(MinKeyLength, 0),
		),
		validation.Field(&r.Service,
			validation.Required,
			validation.Match(serviceNameRegex),
		),
		validation.Field(&r.Payload, validation.Required),
		validation.Field(&r.TimeoutSeconds,
			validation.Min(MinTimeoutSeconds),
			validation.Max(MaxTimeoutSeconds),
		),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	return r.OperationType.Validate()
}

// NewRequest builds a validated request from a deterministic key and payload.
func NewRequest(key Key, payload map[string]any, clientID string, timeoutSeconds int) (*Request, error) {
	req := &Request{
		IdempotencyKey: key.String(),
		OperationType:  key.OperationType,
		Service:        key.Service,
		Payload:        payload,
		ClientID:       clientID,
		TimeoutSeconds: timeoutSeconds,
		CreatedAt:      time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
