package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
)

// RunHashKey computes and prints the deterministic idempotency key for the
// given operation, service and JSON payload. Useful for debugging which key a
// request will map to.
func RunHashKey(w io.Writer, operation, service, payloadJSON string) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("invalid payload JSON: %w", err)
	}

	key, err := domain.NewKey(domain.OperationType(operation), service, payload, nil)
	if err != nil {
		return fmt.Errorf("failed to build key: %w", err)
	}

	_, err = fmt.Fprintln(w, key.String())
	return err
}
