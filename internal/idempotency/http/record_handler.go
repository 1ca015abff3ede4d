package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/httputil"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
	"github.com/allisson/exactly-once/internal/idempotency/http/dto"
	"github.com/allisson/exactly-once/internal/idempotency/usecase"
)

// RecordHandler handles HTTP requests for idempotency record inspection and
// administrative deletion.
type RecordHandler struct {
	store  usecase.Store
	logger *slog.Logger
}

// NewRecordHandler creates a new record handler with required dependencies.
func NewRecordHandler(store usecase.Store, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		store:  store,
		logger: logger,
	}
}

// GetHandler retrieves an idempotency record by key.
// GET /v1/idempotency/:key
// Returns 200 OK with the record, 404 when absent or expired.
func (h *RecordHandler) GetHandler(c *gin.Context) {
	key := c.Param("key")
	if len(key) < domain.MinKeyLength {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("key must be at least %d characters", domain.MinKeyLength),
			h.logger,
		)
		return
	}

	record, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if record == nil {
		httputil.HandleErrorGin(c, apperrors.ErrNotFound, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToResponse(record))
}

// DeleteHandler removes an idempotency record, allowing the operation to run again.
// DELETE /v1/idempotency/:key
// Returns 204 No Content, 404 when the record does not exist.
func (h *RecordHandler) DeleteHandler(c *gin.Context) {
	key := c.Param("key")
	if len(key) < domain.MinKeyLength {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("key must be at least %d characters", domain.MinKeyLength),
			h.logger,
		)
		return
	}

	deleted, err := h.store.Delete(c.Request.Context(), key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if !deleted {
		httputil.HandleErrorGin(c, apperrors.ErrNotFound, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
