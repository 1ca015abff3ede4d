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
	"github.com/allisson/exactly-once/internal/saga/domain"
	"github.com/allisson/exactly-once/internal/saga/http/mocks"
	sagaService "github.com/allisson/exactly-once/internal/saga/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSagaRouter(coordinator *mocks.MockCoordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewSagaHandler(coordinator, testLogger())
	router := gin.New()
	router.POST("/v1/sagas/order-placement", handler.PlaceOrderHandler)
	router.GET("/v1/sagas/:id", handler.GetSagaHandler)
	return router
}

func completedOrderPlacement() *domain.Transaction {
	txn := domain.NewTransaction(sagaService.SagaOrderPlacement,
		sagaService.OrderPlacementSteps(),
		map[string]any{"symbol": "EURUSD", "side": "buy", "quantity": 0.1, "price": 1.1})
	txn.Start()
	for _, id := range txn.Steps {
		exec := txn.TrackStep(id)
		exec.Begin()
		exec.Complete(map[string]any{"step": id})
	}
	txn.CurrentStep = len(txn.Steps)
	txn.Finish(domain.TransactionCompleted, nil)
	return txn
}

func TestPlaceOrderHandler(t *testing.T) {
	t.Run("PlacesOrder", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		txn := completedOrderPlacement()
		coordinator.On("Execute", mock.Anything, sagaService.SagaOrderPlacement,
			sagaService.OrderPlacementSteps(),
			mock.MatchedBy(func(data map[string]any) bool {
				return data["symbol"] == "EURUSD" && data["side"] == "buy"
			})).
			Return(txn, nil).
			Once()

		body := `{"symbol":"EURUSD","side":"buy","quantity":0.1,"price":1.1,"client_id":"client-1"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/sagas/order-placement", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), txn.SagaID.String())
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
		assert.Contains(t, w.Body.String(), `"step_id":"submit_order"`)
		coordinator.AssertExpectations(t)
	})

	t.Run("InvalidJSONReturns400", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/sagas/order-placement", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		coordinator.AssertNotCalled(t, "Execute")
	})

	t.Run("ValidationFailures", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "missing symbol", body: `{"side":"buy","quantity":0.1,"price":1.1}`},
			{name: "invalid side", body: `{"symbol":"EURUSD","side":"hold","quantity":0.1,"price":1.1}`},
			{name: "zero quantity", body: `{"symbol":"EURUSD","side":"buy","quantity":0,"price":1.1}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				coordinator := new(mocks.MockCoordinator)
				router := setupSagaRouter(coordinator)

				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodPost, "/v1/sagas/order-placement", bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
				router.ServeHTTP(w, req)

				assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
				coordinator.AssertNotCalled(t, "Execute")
			})
		}
	})

	t.Run("ConcurrencyCapReturns429", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		coordinator.On("Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrTooManySagas).
			Once()

		body := `{"symbol":"EURUSD","side":"buy","quantity":0.1,"price":1.1}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/sagas/order-placement", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "too_many_sagas")
	})
}

func TestGetSagaHandler(t *testing.T) {
	t.Run("ReturnsSaga", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		txn := completedOrderPlacement()
		coordinator.On("GetSaga", mock.Anything, txn.SagaID.String()).Return(txn, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/sagas/"+txn.SagaID.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), txn.SagaID.String())
		assert.Contains(t, w.Body.String(), `"attempt_count":1`)
	})

	t.Run("InvalidIDReturns422", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/sagas/not-a-uuid", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		coordinator.AssertNotCalled(t, "GetSaga")
	})

	t.Run("UnknownSagaReturns404", func(t *testing.T) {
		coordinator := new(mocks.MockCoordinator)
		router := setupSagaRouter(coordinator)

		sagaID := "01890000-0000-7000-8000-000000000000"
		coordinator.On("GetSaga", mock.Anything, sagaID).Return(nil, apperrors.ErrNotFound).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/sagas/"+sagaID, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})
}
