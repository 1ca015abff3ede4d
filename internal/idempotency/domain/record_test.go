package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T) *Request {
	t.Helper()

	key, err := NewKey(OperationOrderSubmit, "trading-api",
		map[string]any{"symbol": "EURUSD", "side": "buy"}, nil)
	require.NoError(t, err)

	req, err := NewRequest(key, map[string]any{"symbol": "EURUSD", "side": "buy"}, "client-1", 30)
	require.NoError(t, err)
	return req
}

func TestNewRecord(t *testing.T) {
	req := newTestRequest(t)
	record := NewRecord(req, 24*time.Hour)

	assert.Equal(t, req.IdempotencyKey, record.IdempotencyKey)
	assert.Equal(t, OperationOrderSubmit, record.OperationType)
	assert.Equal(t, "trading-api", record.Service)
	assert.Equal(t, StatusPending, record.Status)
	assert.Nil(t, record.Result)
	assert.Nil(t, record.Error)
	assert.Nil(t, record.CompletedAt)
	assert.Zero(t, record.RetryCount)
	assert.WithinDuration(t, record.CreatedAt.Add(24*time.Hour), record.ExpiresAt, time.Second)
}

func TestRecordExpired(t *testing.T) {
	req := newTestRequest(t)
	record := NewRecord(req, time.Hour)

	assert.False(t, record.Expired(time.Now().UTC()))
	assert.True(t, record.Expired(time.Now().UTC().Add(2*time.Hour)))
}

func TestRecordMarkStatus(t *testing.T) {
	t.Run("completed stores result and completion time", func(t *testing.T) {
		record := NewRecord(newTestRequest(t), time.Hour)
		result := map[string]any{"order_id": "abc"}

		record.MarkStatus(StatusCompleted, result, nil)

		assert.Equal(t, StatusCompleted, record.Status)
		assert.Equal(t, result, record.Result)
		require.NotNil(t, record.CompletedAt)
		assert.Nil(t, record.Error)
		assert.Zero(t, record.RetryCount)
	})

	t.Run("failed stores error and increments retry count", func(t *testing.T) {
		record := NewRecord(newTestRequest(t), time.Hour)
		errMsg := "broker rejected order"

		record.MarkStatus(StatusFailed, nil, &errMsg)

		assert.Equal(t, StatusFailed, record.Status)
		require.NotNil(t, record.Error)
		assert.Equal(t, errMsg, *record.Error)
		require.NotNil(t, record.CompletedAt)
		assert.Equal(t, 1, record.RetryCount)

		record.MarkStatus(StatusFailed, nil, &errMsg)
		assert.Equal(t, 2, record.RetryCount)
	})

	t.Run("in progress leaves terminal fields untouched", func(t *testing.T) {
		record := NewRecord(newTestRequest(t), time.Hour)

		record.MarkStatus(StatusInProgress, nil, nil)

		assert.Equal(t, StatusInProgress, record.Status)
		assert.Nil(t, record.CompletedAt)
		assert.Nil(t, record.Result)
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusExpired.Terminal())
}
