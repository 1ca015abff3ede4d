// Package service implements the business operations guarded by the
// exactly-once executor: order submission and signal generation.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/exactly-once/internal/errors"
)

// TradingService performs order submission and signal generation. The heavy
// lifting (routing to a broker, running a strategy) lives behind this boundary;
// the executor only cares that the operation runs at most once per key.
type TradingService struct {
	logger *slog.Logger
}

// NewTradingService creates a new TradingService.
func NewTradingService(logger *slog.Logger) *TradingService {
	return &TradingService{logger: logger}
}

// SubmitOrder places a trading order. The payload carries the normalized order
// fields produced by the key derivation.
func (s *TradingService) SubmitOrder(ctx context.Context, payload map[string]any) (map[string]any, error) {
	symbol, _ := payload["symbol"].(string)
	side, _ := payload["side"].(string)
	side = strings.ToLower(side)

	if symbol == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "order payload missing symbol")
	}
	if side != "buy" && side != "sell" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid order side %q", side)
	}

	orderID := uuid.Must(uuid.NewV7())
	s.logger.Info("order submitted",
		slog.String("order_id", orderID.String()),
		slog.String("symbol", symbol),
		slog.String("side", side))

	return map[string]any{
		"order_id":     orderID.String(),
		"symbol":       symbol,
		"side":         side,
		"quantity":     payload["quantity"],
		"price":        payload["price"],
		"submitted_at": time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// GenerateSignal runs the named strategy and records the resulting signal.
func (s *TradingService) GenerateSignal(ctx context.Context, payload map[string]any) (map[string]any, error) {
	symbol, _ := payload["symbol"].(string)
	strategy, _ := payload["strategy"].(string)

	if symbol == "" || strategy == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "signal payload missing symbol or strategy")
	}

	signalID := uuid.Must(uuid.NewV7())
	s.logger.Info("signal generated",
		slog.String("signal_id", signalID.String()),
		slog.String("symbol", symbol),
		slog.String("strategy", strategy))

	return map[string]any{
		"signal_id":    signalID.String(),
		"symbol":       strings.ToUpper(symbol),
		"timeframe":    payload["timeframe"],
		"strategy":     strategy,
		"generated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
