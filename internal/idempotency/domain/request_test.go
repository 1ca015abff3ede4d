package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/exactly-once/internal/errors"
)

func TestNewRequest(t *testing.T) {
	payload := map[string]any{"symbol": "EURUSD", "side": "buy"}
	key, err := NewKey(OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)

	req, err := NewRequest(key, payload, "client-1", 30)
	require.NoError(t, err)

	assert.Equal(t, key.String(), req.IdempotencyKey)
	assert.Equal(t, OperationOrderSubmit, req.OperationType)
	assert.Equal(t, "trading-api", req.Service)
	assert.Equal(t, payload, req.Payload)
	assert.Equal(t, "client-1", req.ClientID)
	assert.Equal(t, 30, req.TimeoutSeconds)
	assert.False(t, req.CreatedAt.IsZero())
}

func TestRequestValidate(t *testing.T) {
	payload := map[string]any{"symbol": "EURUSD"}
	key, err := NewKey(OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)

	valid := func() *Request {
		return &Request{
			IdempotencyKey: key.String(),
			OperationType:  key.OperationType,
			Service:        key.Service,
			Payload:        payload,
			TimeoutSeconds: 30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{
			name:    "valid request",
			mutate:  func(r *Request) {},
			wantErr: false,
		},
		{
			name:    "missing idempotency key",
			mutate:  func(r *Request) { r.IdempotencyKey = "" },
			wantErr: true,
		},
		{
			name:    "idempotency key too short",
			mutate:  func(r *Request) { r.IdempotencyKey = "short" },
			wantErr: true,
		},
		{
			name:    "missing payload",
			mutate:  func(r *Request) { r.Payload = nil },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(r *Request) { r.TimeoutSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "timeout above maximum",
			mutate:  func(r *Request) { r.TimeoutSeconds = MaxTimeoutSeconds + 1 },
			wantErr: true,
		},
		{
			name:    "unknown operation type",
			mutate:  func(r *Request) { r.OperationType = "bogus" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
