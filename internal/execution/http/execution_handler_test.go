package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/execution/domain"
	"github.com/allisson/exactly-once/internal/execution/http/mocks"
	"github.com/allisson/exactly-once/internal/execution/service"
	executionUseCase "github.com/allisson/exactly-once/internal/execution/usecase"
	idempotencyDomain "github.com/allisson/exactly-once/internal/idempotency/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupExecutionRouter(executor *mocks.MockExecutor) *gin.Engine {
	gin.SetMode(gin.TestMode)

	trading := service.NewTradingService(testLogger())
	handler := NewExecutionHandler(executor, trading, "trading-api", testLogger())

	router := gin.New()
	router.POST("/v1/orders", handler.SubmitOrderHandler)
	router.POST("/v1/signals", handler.GenerateSignalHandler)
	router.GET("/v1/executions/:id", handler.GetExecutionHandler)
	router.POST("/v1/executions/:id/cancel", handler.CancelExecutionHandler)
	return router
}

func completedResult() *domain.Result {
	result := domain.NewResult(idempotencyDomain.OperationOrderSubmit,
		"order_submit:trading-api:abcdef123456")
	result.MarkTerminal(domain.StatusCompleted, map[string]any{"order_id": "abc"}, nil)
	return result
}

func TestSubmitOrderHandler(t *testing.T) {
	t.Run("SubmitsOrder", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		executor.On("ExecuteTradingOrder", mock.Anything,
			mock.MatchedBy(func(in executionUseCase.TradingOrderInput) bool {
				return in.Service == "trading-api" &&
					in.Symbol == "EURUSD" &&
					in.Side == "buy" &&
					in.Operation != nil
			})).
			Return(completedResult(), nil).
			Once()

		body := `{"symbol":"EURUSD","side":"buy","quantity":0.1,"price":1.1,"client_id":"client-1"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "order_submit:trading-api:abcdef123456")
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
		executor.AssertExpectations(t)
	})

	t.Run("InvalidJSONReturns400", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		executor.AssertNotCalled(t, "ExecuteTradingOrder")
	})

	t.Run("ValidationFailures", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "missing symbol", body: `{"side":"buy","quantity":0.1,"price":1.1}`},
			{name: "invalid side", body: `{"symbol":"EURUSD","side":"hold","quantity":0.1,"price":1.1}`},
			{name: "zero quantity", body: `{"symbol":"EURUSD","side":"buy","quantity":0,"price":1.1}`},
			{name: "negative price", body: `{"symbol":"EURUSD","side":"buy","quantity":0.1,"price":-1}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				executor := new(mocks.MockExecutor)
				router := setupExecutionRouter(executor)

				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
				router.ServeHTTP(w, req)

				assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
				executor.AssertNotCalled(t, "ExecuteTradingOrder")
			})
		}
	})
}

func TestGenerateSignalHandler(t *testing.T) {
	t.Run("GeneratesSignal", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		result := domain.NewResult(idempotencyDomain.OperationSignalGenerate,
			"signal_generate:trading-api:abcdef123456")
		result.MarkTerminal(domain.StatusCompleted, map[string]any{"signal_id": "sig-1"}, nil)

		executor.On("ExecuteSignalGeneration", mock.Anything,
			mock.MatchedBy(func(in executionUseCase.SignalInput) bool {
				return in.Symbol == "GBPUSD" && in.Timeframe == "h1" && in.Strategy == "breakout"
			})).
			Return(result, nil).
			Once()

		body := `{"symbol":"GBPUSD","timeframe":"h1","strategy":"breakout"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/signals", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "signal_generate")
		executor.AssertExpectations(t)
	})

	t.Run("BlankStrategyRejected", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		body := `{"symbol":"GBPUSD","timeframe":"h1","strategy":"   "}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/signals", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestGetExecutionHandler(t *testing.T) {
	t.Run("ReturnsExecution", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		result := completedResult()
		executor.On("GetExecution", mock.Anything, result.ExecutionID).Return(result, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/executions/"+result.ExecutionID, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), result.ExecutionID)
	})

	t.Run("UnknownExecutionReturns404", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		executor.On("GetExecution", mock.Anything, "missing").
			Return(nil, apperrors.ErrNotFound).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/executions/missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCancelExecutionHandler(t *testing.T) {
	t.Run("CancelsExecution", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		executor.On("CancelExecution", mock.Anything, "exec-1").Return(true, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/executions/exec-1/cancel", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"cancelled":true`)
	})

	t.Run("TerminalExecutionNotCancelled", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		executor.On("CancelExecution", mock.Anything, "exec-1").Return(false, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/executions/exec-1/cancel", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"cancelled":false`)
	})

	t.Run("LockContentionReturns409", func(t *testing.T) {
		executor := new(mocks.MockExecutor)
		router := setupExecutionRouter(executor)

		executor.On("CancelExecution", mock.Anything, "exec-1").
			Return(false, apperrors.ErrLockNotAcquired).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/executions/exec-1/cancel", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
