// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/exactly-once/internal/validation"
)

// SubmitOrderRequest is the payload for POST /v1/orders.
type SubmitOrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	ClientID string  `json:"client_id"`
}

// Validate checks the order request fields.
func (r SubmitOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Symbol, validation.Required, customValidation.Identifier),
		validation.Field(&r.Side,
			validation.Required,
			validation.In("buy", "sell", "BUY", "SELL"),
		),
		validation.Field(&r.Quantity, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&r.Price, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// GenerateSignalRequest is the payload for POST /v1/signals.
type GenerateSignalRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
	ClientID  string `json:"client_id"`
}

// Validate checks the signal request fields.
func (r GenerateSignalRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Symbol, validation.Required, customValidation.Identifier),
		validation.Field(&r.Timeframe, validation.Required, customValidation.Identifier),
		validation.Field(&r.Strategy, validation.Required, customValidation.NotBlank),
	)
}
