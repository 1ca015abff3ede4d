// Package mocks provides mock implementations for testing database consumers.
package mocks

import (
	"context"
)

// PassthroughTxManager is a TxManager that runs the function without a real
// transaction. Useful for use case tests where persistence is mocked.
type PassthroughTxManager struct {
	// Err, when set, is returned without invoking the function.
	Err error

	// Calls counts WithTx invocations.
	Calls int
}

// WithTx runs the function against the unmodified context.
func (m *PassthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx)
}
