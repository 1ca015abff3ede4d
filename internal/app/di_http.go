package app

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	executionHTTP "github.com/allisson/exactly-once/internal/execution/http"
	executionService "github.com/allisson/exactly-once/internal/execution/service"
	executionUsecase "github.com/allisson/exactly-once/internal/execution/usecase"
	idempotencyHTTP "github.com/allisson/exactly-once/internal/idempotency/http"
	idempotencyUsecase "github.com/allisson/exactly-once/internal/idempotency/usecase"
	outboxHTTP "github.com/allisson/exactly-once/internal/outbox/http"
	outboxUsecase "github.com/allisson/exactly-once/internal/outbox/usecase"
	sagaHTTP "github.com/allisson/exactly-once/internal/saga/http"
	sagaService "github.com/allisson/exactly-once/internal/saga/service"
	sagaUsecase "github.com/allisson/exactly-once/internal/saga/usecase"
)

// executionHTTPHandler wires the trading service into the execution handler.
func executionHTTPHandler(
	executor executionUsecase.Executor,
	serviceName string,
	logger *slog.Logger,
) *executionHTTP.ExecutionHandler {
	trading := executionService.NewTradingService(logger)
	return executionHTTP.NewExecutionHandler(executor, trading, serviceName, logger)
}

// idempotencyHTTPHandler creates the idempotency record handler.
func idempotencyHTTPHandler(store idempotencyUsecase.Store, logger *slog.Logger) *idempotencyHTTP.RecordHandler {
	return idempotencyHTTP.NewRecordHandler(store, logger)
}

// outboxHTTPHandler creates the outbox DLQ handler.
func outboxHTTPHandler(processor outboxUsecase.Processor, logger *slog.Logger) *outboxHTTP.DLQHandler {
	return outboxHTTP.NewDLQHandler(processor, logger)
}

// sagaHTTPHandler registers the order placement saga and wires the coordinator
// into the saga handler.
func sagaHTTPHandler(
	coordinator sagaUsecase.Coordinator,
	logger *slog.Logger,
) (*sagaHTTP.SagaHandler, error) {
	trading := executionService.NewTradingService(logger)
	if err := sagaService.NewOrderPlacementSaga(trading, logger).Register(coordinator); err != nil {
		return nil, err
	}
	return sagaHTTP.NewSagaHandler(coordinator, logger), nil
}

// idempotencyMiddleware creates the response-replay middleware for the v1 routes.
func idempotencyMiddleware(
	store idempotencyUsecase.Store,
	header, serviceName string,
	ttl time.Duration,
	logger *slog.Logger,
) gin.HandlerFunc {
	return idempotencyHTTP.Middleware(store, idempotencyHTTP.MiddlewareConfig{
		Header:  header,
		Service: serviceName,
		TTL:     ttl,
	}, logger)
}
