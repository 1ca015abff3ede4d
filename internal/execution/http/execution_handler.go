// Package http provides HTTP handlers for exactly-once trading executions.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/exactly-once/internal/execution/http/dto"
	"github.com/allisson/exactly-once/internal/execution/service"
	executionUseCase "github.com/allisson/exactly-once/internal/execution/usecase"
	"github.com/allisson/exactly-once/internal/httputil"
	customValidation "github.com/allisson/exactly-once/internal/validation"
)

// ExecutionHandler handles HTTP requests for exactly-once order and signal
// executions.
type ExecutionHandler struct {
	executor executionUseCase.Executor
	trading  *service.TradingService
	service  string
	logger   *slog.Logger
}

// NewExecutionHandler creates a new execution handler with required dependencies.
func NewExecutionHandler(
	executor executionUseCase.Executor,
	trading *service.TradingService,
	serviceName string,
	logger *slog.Logger,
) *ExecutionHandler {
	return &ExecutionHandler{
		executor: executor,
		trading:  trading,
		service:  serviceName,
		logger:   logger,
	}
}

// SubmitOrderHandler places a trading order exactly once.
// POST /v1/orders
// Duplicate submissions (same normalized symbol/side/quantity/price) return the
// original execution result with 200 instead of creating a second order.
func (h *ExecutionHandler) SubmitOrderHandler(c *gin.Context) {
	var req dto.SubmitOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.executor.ExecuteTradingOrder(c.Request.Context(), executionUseCase.TradingOrderInput{
		Service:   h.service,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		ClientID:  req.ClientID,
		Operation: h.trading.SubmitOrder,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result))
}

// GenerateSignalHandler generates a trading signal exactly once.
// POST /v1/signals
func (h *ExecutionHandler) GenerateSignalHandler(c *gin.Context) {
	var req dto.GenerateSignalRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.executor.ExecuteSignalGeneration(c.Request.Context(), executionUseCase.SignalInput{
		Service:   h.service,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Strategy:  req.Strategy,
		ClientID:  req.ClientID,
		Operation: h.trading.GenerateSignal,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result))
}

// GetExecutionHandler retrieves an execution result by its deterministic id.
// GET /v1/executions/:id
func (h *ExecutionHandler) GetExecutionHandler(c *gin.Context) {
	executionID := c.Param("id")
	if executionID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("execution id cannot be empty"), h.logger)
		return
	}

	result, err := h.executor.GetExecution(c.Request.Context(), executionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result))
}

// CancelExecutionHandler cancels a pending or executing operation.
// POST /v1/executions/:id/cancel
// Returns 200 with the cancellation outcome; cancelled=false means the
// execution had already reached a terminal state.
func (h *ExecutionHandler) CancelExecutionHandler(c *gin.Context) {
	executionID := c.Param("id")
	if executionID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("execution id cannot be empty"), h.logger)
		return
	}

	cancelled, err := h.executor.CancelExecution(c.Request.Context(), executionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"cancelled":    cancelled,
	})
}
