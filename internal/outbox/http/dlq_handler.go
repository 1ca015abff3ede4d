// Package http provides HTTP handlers for outbox dead-letter queue management.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/exactly-once/internal/httputil"
	outboxDomain "github.com/allisson/exactly-once/internal/outbox/domain"
	outboxUseCase "github.com/allisson/exactly-once/internal/outbox/usecase"
)

// DLQHandler handles HTTP requests for inspecting and reprocessing
// dead-lettered outbox events.
type DLQHandler struct {
	processor outboxUseCase.Processor
	logger    *slog.Logger
}

// NewDLQHandler creates a new DLQ handler with required dependencies.
func NewDLQHandler(processor outboxUseCase.Processor, logger *slog.Logger) *DLQHandler {
	return &DLQHandler{
		processor: processor,
		logger:    logger,
	}
}

// deadLetterResponse represents a dead-lettered event in API responses.
type deadLetterResponse struct {
	ID            string     `json:"id"`
	EventType     string     `json:"event_type"`
	AggregateID   string     `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Topic         string     `json:"topic"`
	Priority      string     `json:"priority"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func mapDeadLetterResponse(event *outboxDomain.Event) deadLetterResponse {
	return deadLetterResponse{
		ID:            event.ID.String(),
		EventType:     event.EventType,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		Topic:         event.Topic,
		Priority:      string(event.Priority),
		RetryCount:    event.RetryCount,
		MaxRetries:    event.MaxRetries,
		LastError:     event.LastError,
		CreatedAt:     event.CreatedAt,
		ExpiresAt:     event.ExpiresAt,
	}
}

// ListHandler lists dead-lettered events.
// GET /v1/outbox/dlq?offset=0&limit=50
func (h *DLQHandler) ListHandler(c *gin.Context) {
	_, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	events, err := h.processor.ListDeadLetter(c.Request.Context(), limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	responses := make([]deadLetterResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, mapDeadLetterResponse(event))
	}

	c.JSON(http.StatusOK, gin.H{"events": responses})
}

// ReprocessHandler moves dead-lettered events back to pending for another
// round of delivery attempts.
// POST /v1/outbox/dlq/reprocess?limit=50
func (h *DLQHandler) ReprocessHandler(c *gin.Context) {
	_, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	count, err := h.processor.ReprocessDLQ(c.Request.Context(), limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reprocessed": count})
}
