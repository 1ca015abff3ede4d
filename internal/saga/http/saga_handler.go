// Package http provides HTTP handlers for saga transactions.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/exactly-once/internal/httputil"
	"github.com/allisson/exactly-once/internal/saga/http/dto"
	sagaService "github.com/allisson/exactly-once/internal/saga/service"
	sagaUseCase "github.com/allisson/exactly-once/internal/saga/usecase"
	customValidation "github.com/allisson/exactly-once/internal/validation"
)

// SagaHandler handles HTTP requests for saga transactions.
type SagaHandler struct {
	coordinator sagaUseCase.Coordinator
	logger      *slog.Logger
}

// NewSagaHandler creates a new saga handler with required dependencies.
func NewSagaHandler(coordinator sagaUseCase.Coordinator, logger *slog.Logger) *SagaHandler {
	return &SagaHandler{coordinator: coordinator, logger: logger}
}

// PlaceOrderHandler runs the order placement saga to completion.
// POST /v1/sagas/order-placement
// The response is always a terminal transaction: step failures surface as a
// compensated saga, not as an HTTP error.
func (h *SagaHandler) PlaceOrderHandler(c *gin.Context) {
	var req dto.PlaceOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	txn, err := h.coordinator.Execute(
		c.Request.Context(),
		sagaService.SagaOrderPlacement,
		sagaService.OrderPlacementSteps(),
		map[string]any{
			"symbol":    req.Symbol,
			"side":      req.Side,
			"quantity":  req.Quantity,
			"price":     req.Price,
			"client_id": req.ClientID,
		},
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransactionToResponse(txn))
}

// GetSagaHandler retrieves a saga transaction by id.
// GET /v1/sagas/:id
func (h *SagaHandler) GetSagaHandler(c *gin.Context) {
	sagaID := c.Param("id")
	if _, err := uuid.Parse(sagaID); err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("saga id must be a valid uuid"), h.logger)
		return
	}

	txn, err := h.coordinator.GetSaga(c.Request.Context(), sagaID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransactionToResponse(txn))
}
