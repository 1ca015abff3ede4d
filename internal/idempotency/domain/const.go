// Package domain defines the core idempotency domain models: deterministic keys,
// request/record value objects, and their validation rules. Everything in this
// package is pure — no I/O, no clocks beyond explicit timestamps.
package domain

// OperationType is the closed set of business operation categories. It namespaces
// idempotency keys and routes requests in the HTTP layer.
type OperationType string

const (
	OperationOrderSubmit      OperationType = "order_submit"
	OperationOrderCancel      OperationType = "order_cancel"
	OperationOrderModify      OperationType = "order_modify"
	OperationPositionClose    OperationType = "position_close"
	OperationSignalGenerate   OperationType = "signal_generate"
	OperationRiskValidate     OperationType = "risk_validate"
	OperationPriceIngest      OperationType = "price_ingest"
	OperationIndicatorCompute OperationType = "indicator_compute"
	OperationReportGenerate   OperationType = "report_generate"
	OperationComplianceCheck  OperationType = "compliance_check"

	// OperationHTTPRequest namespaces responses cached by the HTTP idempotency
	// middleware, which guards arbitrary routes rather than one business operation.
	OperationHTTPRequest OperationType = "http_request"
)

// Validate checks if the operation type is one of the known categories.
func (o OperationType) Validate() error {
	switch o {
	case OperationOrderSubmit, OperationOrderCancel, OperationOrderModify,
		OperationPositionClose, OperationSignalGenerate, OperationRiskValidate,
		OperationPriceIngest, OperationIndicatorCompute, OperationReportGenerate,
		OperationComplianceCheck, OperationHTTPRequest:
		return nil
	default:
		return ErrUnknownOperationType
	}
}

// String returns the string representation of the operation type.
func (o OperationType) String() string {
	return string(o)
}

// Status represents the lifecycle state of an idempotency record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Request validation constraints.
const (
	// MinKeyLength is the minimum accepted length for a client-supplied idempotency key.
	MinKeyLength = 10

	// MinHashLength is the minimum accepted length for the deterministic hash component.
	MinHashLength = 8

	// DefaultHashLength is the number of hex characters taken from the SHA-256 digest.
	DefaultHashLength = 12

	// MinTimeoutSeconds and MaxTimeoutSeconds bound a request's operation timeout.
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 3600
)
