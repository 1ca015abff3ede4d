package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/exactly-once/internal/outbox/domain"
	"github.com/allisson/exactly-once/internal/outbox/usecase/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDLQRouter(processor *mocks.MockProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewDLQHandler(processor, testLogger())

	router := gin.New()
	router.GET("/v1/outbox/dlq", handler.ListHandler)
	router.POST("/v1/outbox/dlq/reprocess", handler.ReprocessHandler)
	return router
}

func deadEvent() *outboxDomain.Event {
	event := outboxDomain.NewEvent("order.submitted", "order-1", "order",
		"trading.orders", map[string]any{"symbol": "EURUSD"})
	event.MaxRetries = 1
	event.MarkFailure("broker unavailable")
	return event
}

func TestDLQHandler_ListHandler(t *testing.T) {
	t.Run("ListsDeadLetteredEvents", func(t *testing.T) {
		processor := new(mocks.MockProcessor)
		router := setupDLQRouter(processor)

		event := deadEvent()
		processor.On("ListDeadLetter", mock.Anything, 50).
			Return([]*outboxDomain.Event{event}, nil).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/outbox/dlq?limit=50", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), event.ID.String())
		assert.Contains(t, w.Body.String(), "broker unavailable")
		processor.AssertExpectations(t)
	})

	t.Run("EmptyDLQ", func(t *testing.T) {
		processor := new(mocks.MockProcessor)
		router := setupDLQRouter(processor)

		processor.On("ListDeadLetter", mock.Anything, 50).
			Return([]*outboxDomain.Event{}, nil).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/outbox/dlq?limit=50", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"events":[]}`, w.Body.String())
	})

	t.Run("InvalidPagination", func(t *testing.T) {
		processor := new(mocks.MockProcessor)
		router := setupDLQRouter(processor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/outbox/dlq?limit=bogus", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		processor.AssertNotCalled(t, "ListDeadLetter")
	})

	t.Run("ProcessorError", func(t *testing.T) {
		processor := new(mocks.MockProcessor)
		router := setupDLQRouter(processor)

		processor.On("ListDeadLetter", mock.Anything, 50).
			Return(nil, assert.AnError).
			Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/outbox/dlq?limit=50", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDLQHandler_ReprocessHandler(t *testing.T) {
	processor := new(mocks.MockProcessor)
	router := setupDLQRouter(processor)

	processor.On("ReprocessDLQ", mock.Anything, 50).Return(3, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/dlq/reprocess?limit=50", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reprocessed":3}`, w.Body.String())
	processor.AssertExpectations(t)
}
