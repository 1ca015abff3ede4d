// Package dto provides data transfer objects for saga HTTP handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/exactly-once/internal/validation"
)

// PlaceOrderRequest is the payload for POST /v1/sagas/order-placement.
type PlaceOrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	ClientID string  `json:"client_id"`
}

// Validate checks the order placement request fields.
func (r PlaceOrderRequest) Validate() error {
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
