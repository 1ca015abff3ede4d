package domain

import (
	"time"
)

// Record is the stored state of an idempotent operation keyed by its idempotency
// key. Records are created PENDING, claimed IN_PROGRESS by exactly one executor,
// and finish COMPLETED (with Result) or FAILED (with Error). A record past its
// ExpiresAt is logically absent: stores must treat it as missing and lazily
// delete it on read.
type Record struct {
	IdempotencyKey string
	OperationType  OperationType
	Service        string
	Status         Status
	Result         map[string]any
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	ExpiresAt      time.Time
	RetryCount     int
}

// NewRecord builds a fresh PENDING record for a first-seen request.
func NewRecord(req *Request, ttl time.Duration) *Record {
	now := time.Now().UTC()
	return &Record{
		IdempotencyKey: req.IdempotencyKey,
		OperationType:  req.OperationType,
		Service:        req.Service,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// MarkStatus applies a status transition, stamping completion time for terminal
// states and incrementing the retry counter on failure.
func (r *Record) MarkStatus(status Status, result map[string]any, errMsg *string) {
	now := time.Now().UTC()
	r.Status = status
	r.UpdatedAt = now

	switch status {
	case StatusCompleted:
		r.Result = result
		r.CompletedAt = &now
	case StatusFailed:
		r.Error = errMsg
		r.CompletedAt = &now
		r.RetryCount++
	}
}
