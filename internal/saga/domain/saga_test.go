package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	data := map[string]any{"symbol": "EURUSD", "quantity": 0.1}
	txn := NewTransaction("submit_order", []string{"risk_check", "submit", "notify"}, data)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", txn.SagaID.String())
	assert.Equal(t, "submit_order", txn.Name)
	assert.Equal(t, []string{"risk_check", "submit", "notify"}, txn.Steps)
	assert.Equal(t, TransactionPending, txn.Status)
	assert.Zero(t, txn.CurrentStep)
	assert.Nil(t, txn.StartedAt)
	assert.Nil(t, txn.CompletedAt)

	require.NotNil(t, txn.Context)
	assert.Equal(t, txn.SagaID, txn.Context.SagaID)
	assert.Equal(t, data, txn.Context.Data)
	assert.NotNil(t, txn.Context.StepResults)
	assert.NotNil(t, txn.Context.StepExecutions)
}

func TestNewTransactionNilData(t *testing.T) {
	txn := NewTransaction("submit_order", []string{"submit"}, nil)

	require.NotNil(t, txn.Context)
	assert.NotNil(t, txn.Context.Data)
	assert.Empty(t, txn.Context.Data)
}

func TestTransactionStart(t *testing.T) {
	txn := NewTransaction("submit_order", []string{"submit"}, nil)

	txn.Start()

	assert.Equal(t, TransactionRunning, txn.Status)
	require.NotNil(t, txn.StartedAt)
	assert.WithinDuration(t, time.Now().UTC(), *txn.StartedAt, time.Second)
}

func TestTransactionFinish(t *testing.T) {
	txn := NewTransaction("submit_order", []string{"submit"}, nil)
	txn.Start()

	errMsg := "step failed"
	txn.Finish(TransactionCompensated, &errMsg)

	assert.Equal(t, TransactionCompensated, txn.Status)
	require.NotNil(t, txn.CompletedAt)
	require.NotNil(t, txn.Error)
	assert.Equal(t, errMsg, *txn.Error)
}

func TestTrackStep(t *testing.T) {
	txn := NewTransaction("submit_order", []string{"submit"}, nil)

	exec := txn.TrackStep("submit")
	require.NotNil(t, exec)
	assert.Equal(t, "submit", exec.StepID)
	assert.Equal(t, StepPending, exec.Status)
	assert.Zero(t, exec.AttemptCount)

	// Repeated calls return the same entry.
	assert.Same(t, exec, txn.TrackStep("submit"))
}

func TestStepExecutionLifecycle(t *testing.T) {
	t.Run("CompletedAfterRetry", func(t *testing.T) {
		exec := &StepExecution{StepID: "submit", Status: StepPending}

		exec.Begin()
		require.NotNil(t, exec.StartedAt)
		firstStart := exec.StartedAt
		assert.Equal(t, StepRunning, exec.Status)
		assert.Equal(t, 1, exec.AttemptCount)

		// The second attempt keeps the original start time.
		exec.Begin()
		assert.Same(t, firstStart, exec.StartedAt)
		assert.Equal(t, 2, exec.AttemptCount)

		exec.Complete(map[string]any{"order_id": "ord-1"})
		assert.Equal(t, StepCompleted, exec.Status)
		assert.Equal(t, map[string]any{"order_id": "ord-1"}, exec.Result)
		require.NotNil(t, exec.CompletedAt)
	})

	t.Run("Failed", func(t *testing.T) {
		exec := &StepExecution{StepID: "notify", Status: StepPending}

		exec.Begin()
		exec.Fail("notification service down")

		assert.Equal(t, StepFailed, exec.Status)
		require.NotNil(t, exec.Error)
		assert.Equal(t, "notification service down", *exec.Error)
		require.NotNil(t, exec.CompletedAt)
	})
}

func TestTransactionStatusTerminal(t *testing.T) {
	assert.False(t, TransactionPending.Terminal())
	assert.False(t, TransactionRunning.Terminal())
	assert.False(t, TransactionCompensating.Terminal())
	assert.True(t, TransactionCompleted.Terminal())
	assert.True(t, TransactionCompensated.Terminal())
	assert.True(t, TransactionFailed.Terminal())
}
