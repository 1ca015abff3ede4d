// Package service defines the order placement saga: risk check, funds
// reservation and order submission, each undone by a compensation when a later
// step fails.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	executionService "github.com/allisson/exactly-once/internal/execution/service"
	"github.com/allisson/exactly-once/internal/saga/domain"
	"github.com/allisson/exactly-once/internal/saga/usecase"
)

// SagaOrderPlacement is the registered name of the order placement saga.
const SagaOrderPlacement = "order_placement"

// Step ids of the order placement saga, in execution order.
const (
	StepRiskCheck    = "risk_check"
	StepReserveFunds = "reserve_funds"
	StepSubmitOrder  = "submit_order"
)

// maxOrderNotional is the per-order exposure limit enforced by the risk check.
const maxOrderNotional = 1_000_000.0

// OrderPlacementSteps returns the ordered step ids of the order placement saga.
func OrderPlacementSteps() []string {
	return []string{StepRiskCheck, StepReserveFunds, StepSubmitOrder}
}

// OrderPlacementSaga builds the order placement step definitions around the
// trading service.
type OrderPlacementSaga struct {
	trading *executionService.TradingService
	logger  *slog.Logger
}

// NewOrderPlacementSaga creates a new OrderPlacementSaga.
func NewOrderPlacementSaga(trading *executionService.TradingService, logger *slog.Logger) *OrderPlacementSaga {
	return &OrderPlacementSaga{trading: trading, logger: logger}
}

// Register adds the order placement steps to the coordinator's registry.
func (s *OrderPlacementSaga) Register(coordinator usecase.Coordinator) error {
	steps := []*domain.Step{
		{
			StepID: StepRiskCheck,
			Name:   "Risk check",
			Action: s.riskCheck,
		},
		{
			StepID:       StepReserveFunds,
			Name:         "Reserve funds",
			Action:       s.reserveFunds,
			Compensation: s.releaseFunds,
		},
		{
			StepID:       StepSubmitOrder,
			Name:         "Submit order",
			Action:       s.submitOrder,
			Compensation: s.cancelOrder,
		},
	}

	for _, step := range steps {
		if err := coordinator.RegisterStep(step); err != nil {
			return err
		}
	}
	return nil
}

// riskCheck validates the order's notional exposure before any funds move.
func (s *OrderPlacementSaga) riskCheck(ctx context.Context, sc *domain.Context) (map[string]any, error) {
	quantity, _ := sc.Data["quantity"].(float64)
	price, _ := sc.Data["price"].(float64)

	notional := quantity * price
	if notional <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "order notional must be positive")
	}
	if notional > maxOrderNotional {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput,
			"order notional %.2f exceeds the per-order limit", notional)
	}

	return map[string]any{"approved": true, "notional": notional}, nil
}

// reserveFunds earmarks the order's notional amount, returning the reservation
// id the compensation needs to undo it.
func (s *OrderPlacementSaga) reserveFunds(ctx context.Context, sc *domain.Context) (map[string]any, error) {
	reservationID := uuid.Must(uuid.NewV7()).String()
	notional := sc.StepResults[StepRiskCheck]["notional"]

	s.logger.Info("funds reserved",
		slog.String("saga_id", sc.SagaID.String()),
		slog.String("reservation_id", reservationID),
		slog.Any("amount", notional))

	return map[string]any{"reservation_id": reservationID, "amount": notional}, nil
}

// releaseFunds undoes a funds reservation during compensation.
func (s *OrderPlacementSaga) releaseFunds(ctx context.Context, sc *domain.Context) error {
	result, ok := sc.StepResults[StepReserveFunds]
	if !ok {
		return nil
	}
	reservationID, _ := result["reservation_id"].(string)

	s.logger.Info("funds released",
		slog.String("saga_id", sc.SagaID.String()),
		slog.String("reservation_id", reservationID))
	return nil
}

// submitOrder places the order through the trading service.
func (s *OrderPlacementSaga) submitOrder(ctx context.Context, sc *domain.Context) (map[string]any, error) {
	return s.trading.SubmitOrder(ctx, sc.Data)
}

// cancelOrder undoes a submitted order during compensation.
func (s *OrderPlacementSaga) cancelOrder(ctx context.Context, sc *domain.Context) error {
	result, ok := sc.StepResults[StepSubmitOrder]
	if !ok {
		return nil
	}
	orderID, _ := result["order_id"].(string)

	s.logger.Info("order cancelled",
		slog.String("saga_id", sc.SagaID.String()),
		slog.String("order_id", orderID))
	return nil
}
