// Package domain defines the transactional outbox domain entities. Events are
// persisted in the same transaction as the state change that produced them, then
// drained asynchronously with priority ordering, retries and dead-lettering.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the status of an outbox event.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusPublished EventStatus = "published"
	EventStatusFailed    EventStatus = "failed"
)

// EventPriority orders ready events: higher priorities drain first, FIFO within
// a priority.
type EventPriority string

const (
	PriorityLow      EventPriority = "low"
	PriorityNormal   EventPriority = "normal"
	PriorityHigh     EventPriority = "high"
	PriorityCritical EventPriority = "critical"
)

// Weight returns the numeric ordering weight for the priority.
func (p EventPriority) Weight() int {
	switch p {
	case PriorityCritical:
		return 40
	case PriorityHigh:
		return 30
	case PriorityNormal:
		return 20
	case PriorityLow:
		return 10
	default:
		return 20
	}
}

// Default retry policy for events that do not specify their own.
const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 5 * time.Second
	MaxRetryDelay     = 10 * time.Minute
)

// Event is a durable outbox event. Created by business logic or the executor at
// operation-completion time; owned by the processor until published or
// dead-lettered.
type Event struct {
	ID             uuid.UUID
	EventType      string
	AggregateID    string
	AggregateType  string
	Payload        map[string]any
	Metadata       map[string]any
	Topic          string
	RoutingKey     *string
	Status         EventStatus
	Priority       EventPriority
	CreatedAt      time.Time
	ScheduledAt    time.Time
	PublishedAt    *time.Time
	ExpiresAt      *time.Time
	RetryCount     int
	MaxRetries     int
	RetryDelay     time.Duration
	LastError      *string
	IdempotencyKey *string
}

// NewEvent builds a pending event with the default retry policy, ready immediately.
func NewEvent(eventType, aggregateID, aggregateType, topic string, payload map[string]any) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:            uuid.Must(uuid.NewV7()),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payload,
		Metadata:      map[string]any{},
		Topic:         topic,
		Status:        EventStatusPending,
		Priority:      PriorityNormal,
		CreatedAt:     now,
		ScheduledAt:   now,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
	}
}

// Expired reports whether the event outlived its expiry at the given instant.
// Expired events are skipped, never retried.
func (e *Event) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// NextRetryDelay computes the exponential backoff delay for the current retry
// count: retryDelay * 2^(retryCount-1), capped at MaxRetryDelay.
func (e *Event) NextRetryDelay() time.Duration {
	delay := e.RetryDelay
	for i := 1; i < e.RetryCount; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	if delay > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay
}

// MarkPublished transitions the event to published.
func (e *Event) MarkPublished() {
	now := time.Now().UTC()
	e.Status = EventStatusPublished
	e.PublishedAt = &now
}

// MarkFailure records a publish failure: reschedules with backoff while retries
// remain, otherwise dead-letters the event (terminal, human-reviewable).
func (e *Event) MarkFailure(errMsg string) {
	e.RetryCount++
	e.LastError = &errMsg

	if e.RetryCount >= e.MaxRetries {
		e.Status = EventStatusFailed
		return
	}
	e.ScheduledAt = time.Now().UTC().Add(e.NextRetryDelay())
}

// ResetForRetry clears retry state so a dead-lettered event can be reprocessed.
func (e *Event) ResetForRetry() {
	e.Status = EventStatusPending
	e.RetryCount = 0
	e.LastError = nil
	e.ScheduledAt = time.Now().UTC()
}
