package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/exactly-once/internal/idempotency/domain"
	"github.com/allisson/exactly-once/internal/idempotency/usecase/mocks"
)

func setupRecordRouter(store *mocks.MockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewRecordHandler(store, testLogger())

	router := gin.New()
	router.GET("/v1/idempotency/:key", handler.GetHandler)
	router.DELETE("/v1/idempotency/:key", handler.DeleteHandler)
	return router
}

func testRecord() *domain.Record {
	now := time.Now().UTC()
	return &domain.Record{
		IdempotencyKey: "order_submit:trading-api:abcdef123456",
		OperationType:  domain.OperationOrderSubmit,
		Service:        "trading-api",
		Status:         domain.StatusCompleted,
		Result:         map[string]any{"order_id": "abc"},
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
}

func TestRecordHandler_GetHandler(t *testing.T) {
	t.Run("ReturnsRecord", func(t *testing.T) {
		store := new(mocks.MockStore)
		router := setupRecordRouter(store)

		record := testRecord()
		store.On("Get", mock.Anything, record.IdempotencyKey).Return(record, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/idempotency/"+record.IdempotencyKey, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), record.IdempotencyKey)
		assert.Contains(t, w.Body.String(), "completed")
		store.AssertExpectations(t)
	})

	t.Run("AbsentRecordReturns404", func(t *testing.T) {
		store := new(mocks.MockStore)
		router := setupRecordRouter(store)

		store.On("Get", mock.Anything, "missing-record-key").Return(nil, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/idempotency/missing-record-key", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ShortKeyReturns422", func(t *testing.T) {
		store := new(mocks.MockStore)
		router := setupRecordRouter(store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/idempotency/short", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		store.AssertNotCalled(t, "Get")
	})
}

func TestRecordHandler_DeleteHandler(t *testing.T) {
	t.Run("DeletesRecord", func(t *testing.T) {
		store := new(mocks.MockStore)
		router := setupRecordRouter(store)

		store.On("Delete", mock.Anything, "order_submit:trading-api:abcdef123456").
			Return(true, nil).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete,
			"/v1/idempotency/order_submit:trading-api:abcdef123456", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("AbsentRecordReturns404", func(t *testing.T) {
		store := new(mocks.MockStore)
		router := setupRecordRouter(store)

		store.On("Delete", mock.Anything, "missing-record-key").Return(false, nil).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/v1/idempotency/missing-record-key", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
