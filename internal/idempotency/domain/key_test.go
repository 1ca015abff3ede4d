package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/exactly-once/internal/errors"
)

func TestNewKey(t *testing.T) {
	payload := map[string]any{"symbol": "EURUSD", "side": "buy"}

	key, err := NewKey(OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)

	assert.Equal(t, OperationOrderSubmit, key.OperationType)
	assert.Equal(t, "trading-api", key.Service)
	assert.Len(t, key.Hash, DefaultHashLength)
	assert.Equal(t, "order_submit:trading-api:"+key.Hash, key.String())

	// Same payload yields the same key.
	again, err := NewKey(OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestNewKeyAdditionalContext(t *testing.T) {
	payload := map[string]any{"symbol": "EURUSD", "account": "default"}

	base, err := NewKey(OperationOrderSubmit, "trading-api", payload, nil)
	require.NoError(t, err)

	// Additional context scopes otherwise-identical payloads.
	scoped, err := NewKey(OperationOrderSubmit, "trading-api", payload,
		map[string]any{"session": "london"})
	require.NoError(t, err)
	assert.NotEqual(t, base.Hash, scoped.Hash)

	// Additional context wins on colliding keys.
	overridden, err := NewKey(OperationOrderSubmit, "trading-api", payload,
		map[string]any{"account": "hedge"})
	require.NoError(t, err)
	direct, err := NewKey(OperationOrderSubmit, "trading-api",
		map[string]any{"symbol": "EURUSD", "account": "hedge"}, nil)
	require.NoError(t, err)
	assert.Equal(t, direct.Hash, overridden.Hash)
}

func TestNewKeyValidation(t *testing.T) {
	payload := map[string]any{"a": 1}

	tests := []struct {
		name          string
		operationType OperationType
		service       string
	}{
		{
			name:          "unknown operation type",
			operationType: OperationType("teleport_funds"),
			service:       "trading-api",
		},
		{
			name:          "empty service",
			operationType: OperationOrderSubmit,
			service:       "",
		},
		{
			name:          "service with invalid characters",
			operationType: OperationOrderSubmit,
			service:       "trading api!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKey(tt.operationType, tt.service, payload, nil)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestNewTradingOrderKey(t *testing.T) {
	// Casing and floating-point noise normalize to the same key.
	key1, err := NewTradingOrderKey("trading-api", "eurusd", "BUY", 0.1000001, 1.10005)
	require.NoError(t, err)

	key2, err := NewTradingOrderKey("trading-api", "EURUSD", "buy", 0.1, 1.1000499999)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, OperationOrderSubmit, key1.OperationType)

	// A materially different quantity produces a different key.
	key3, err := NewTradingOrderKey("trading-api", "EURUSD", "buy", 0.2, 1.10005)
	require.NoError(t, err)
	assert.NotEqual(t, key1.Hash, key3.Hash)
}

func TestNewSignalKey(t *testing.T) {
	key1, err := NewSignalKey("trading-api", "gbpusd", "H1", "breakout")
	require.NoError(t, err)

	key2, err := NewSignalKey("trading-api", "GBPUSD", "h1", "breakout")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, OperationSignalGenerate, key1.OperationType)

	// Strategy is case sensitive.
	key3, err := NewSignalKey("trading-api", "GBPUSD", "h1", "Breakout")
	require.NoError(t, err)
	assert.NotEqual(t, key1.Hash, key3.Hash)
}

func TestKeyValidate(t *testing.T) {
	valid := Key{
		OperationType: OperationOrderSubmit,
		Service:       "trading-api",
		Hash:          "abcdef123456",
	}
	assert.NoError(t, valid.Validate())

	shortHash := valid
	shortHash.Hash = "abc"
	assert.Error(t, shortHash.Validate())

	noService := valid
	noService.Service = ""
	assert.Error(t, noService.Validate())
}

func TestOperationTypeValidate(t *testing.T) {
	for _, op := range []OperationType{
		OperationOrderSubmit, OperationOrderCancel, OperationOrderModify,
		OperationPositionClose, OperationSignalGenerate, OperationRiskValidate,
		OperationPriceIngest, OperationIndicatorCompute, OperationReportGenerate,
		OperationComplianceCheck, OperationHTTPRequest,
	} {
		assert.NoError(t, op.Validate(), "operation %s should be valid", op)
	}

	assert.ErrorIs(t, OperationType("bogus").Validate(), ErrUnknownOperationType)
}
