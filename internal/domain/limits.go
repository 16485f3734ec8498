package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitKey identifies a ClientLimit or AggregationUnitLimit record.
type LimitKey struct {
	ID           string // clientId or aggregationUnitId
	SecurityID   string
	BusinessDate time.Time
}

// ClientLimit tracks a client's long/short sell limits and usage for a
// security on a business date. Invariant (spec.md §3): 0 <= used <= limit +
// epsilon, and a successful validation atomically increases used.
type ClientLimit struct {
	AuditHeader

	Key LimitKey

	LongSellLimit  decimal.Decimal
	ShortSellLimit decimal.Decimal
	LongSellUsed   decimal.Decimal
	ShortSellUsed  decimal.Decimal
}

// AggregationUnitLimit mirrors ClientLimit, scoped to an aggregation unit.
type AggregationUnitLimit struct {
	AuditHeader

	Key LimitKey

	LongSellLimit  decimal.Decimal
	ShortSellLimit decimal.Decimal
	LongSellUsed   decimal.Decimal
	ShortSellUsed  decimal.Decimal
}

// OrderType distinguishes a long sell from a short sell order.
type OrderType string

const (
	OrderLongSell  OrderType = "LongSell"
	OrderShortSell OrderType = "ShortSell"
)

// Order is the short-sell validator's input (spec.md §4.6).
type Order struct {
	OrderID           string
	SecurityID        string
	ClientID          string
	AggregationUnitID string
	OrderType         OrderType
	Quantity          decimal.Decimal
}

// Remaining returns limit - used for the side relevant to orderType.
func (l ClientLimit) Remaining(orderType OrderType) decimal.Decimal {
	if orderType == OrderLongSell {
		return l.LongSellLimit.Sub(l.LongSellUsed)
	}
	return l.ShortSellLimit.Sub(l.ShortSellUsed)
}

// Remaining returns limit - used for the side relevant to orderType.
func (l AggregationUnitLimit) Remaining(orderType OrderType) decimal.Decimal {
	if orderType == OrderLongSell {
		return l.LongSellLimit.Sub(l.LongSellUsed)
	}
	return l.ShortSellLimit.Sub(l.ShortSellUsed)
}
