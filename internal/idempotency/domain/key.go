package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/exactly-once/internal/errors"
)

// serviceNameRegex constrains the service component of a key.
var serviceNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Key is an immutable, purely structural idempotency key. Two logically identical
// requests must produce the same Key regardless of which process computed it —
// there is no generated UUID component.
type Key struct {
	OperationType OperationType
	Service       string
	Hash          string
}

// String returns the canonical string form "{operation_type}:{service}:{hash}".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.OperationType, k.Service, k.Hash)
}

// Validate checks the structural invariants of the key. Violations are programmer
// errors, never runtime conditions to retry.
func (k Key) Validate() error {
	err := validation.ValidateStruct(&k,
		validation.Field(&k.Service,
			validation.Required,
			validation.Match(serviceNameRegex).
				Error("must contain only alphanumerics, hyphens and underscores"),
		),
		validation.Field(&k.Hash,
			validation.Required,
			validation.Length(MinHashLength, 0).
				Error(fmt.Sprintf("must be at least %d characters", MinHashLength)),
		),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	return k.OperationType.Validate()
}

// NewKey builds a deterministic key for the given operation and payload.
// additionalContext is merged over the payload before hashing (it wins on
// colliding keys), so callers can scope otherwise-identical payloads.
func NewKey(
	operationType OperationType,
	service string,
	payload map[string]any,
	additionalContext map[string]any,
) (Key, error) {
	merged := make(map[string]any, len(payload)+len(additionalContext))
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range additionalContext {
		merged[k] = v
	}

	hash, err := DeterministicHash(merged, DefaultHashLength)
	if err != nil {
		return Key{}, apperrors.Wrap(err, "failed to hash payload")
	}

	key := Key{
		OperationType: operationType,
		Service:       service,
		Hash:          hash,
	}
	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// NewTradingOrderKey builds a key from normalized order fields so floating-point
// noise or casing differences never defeat deduplication. The rounding precision
// is a contract: quantity rounds to 6 decimals, price to 5.
func NewTradingOrderKey(service, symbol, side string, quantity, price float64) (Key, error) {
	payload := map[string]any{
		"symbol":   strings.ToUpper(symbol),
		"side":     strings.ToLower(side),
		"quantity": roundTo(quantity, 6),
		"price":    roundTo(price, 5),
	}
	return NewKey(OperationOrderSubmit, service, payload, nil)
}

// NewSignalKey builds a key for signal generation from normalized strategy fields.
func NewSignalKey(service, symbol, timeframe, strategy string) (Key, error) {
	payload := map[string]any{
		"symbol":    strings.ToUpper(symbol),
		"timeframe": strings.ToLower(timeframe),
		"strategy":  strategy,
	}
	return NewKey(OperationSignalGenerate, service, payload, nil)
}

// roundTo rounds v half-away-from-zero to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
