package domain

import "github.com/shopspring/decimal"

// Decimal is the fixed-scale numeric type used for every quantity, price,
// rate and money amount in the domain model (spec.md §9).
type Decimal = decimal.Decimal

// Money pairs a Decimal amount with its currency.
type Money struct {
	Currency string  `json:"currency"`
	Amount   Decimal `json:"amount"`
}
