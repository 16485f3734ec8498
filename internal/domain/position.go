package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LadderDepth is the fixed settlement-ladder depth D=5 (offsets 0..4).
const LadderDepth = 5

// CalculationStatus is the recompute status of a Position or
// InventoryAvailability record.
type CalculationStatus string

const (
	CalculationPending CalculationStatus = "Pending"
	CalculationValid   CalculationStatus = "Valid"
	CalculationError   CalculationStatus = "Error"
)

// PositionKey is the canonical identity of a Position: exactly one active
// record exists per key (spec.md §3 invariant 1).
type PositionKey struct {
	BookID             string
	SecurityInternalID string
	BusinessDate       time.Time // truncated to day, UTC
}

// Position is keyed by (bookId, securityInternalId, businessDate) and is
// owned exclusively by the Position Engine. It is never deleted: a new
// business date gets a new record (spec.md §3).
type Position struct {
	AuditHeader

	Key PositionKey

	ContractualQty decimal.Decimal
	SettledQty     decimal.Decimal

	// Deliver[o]/Receipt[o] for offset o in [0, LadderDepth).
	Deliver [LadderDepth]decimal.Decimal
	Receipt [LadderDepth]decimal.Decimal

	IsHypothecatable bool
	IsReserved       bool
	IsStartOfDay     bool

	// HadIntradayActivity is true once any non-SOD event has mutated this
	// key on its business date; a SOD event arriving afterward must be
	// rejected as Permanent (spec.md §4.2 edge case, §9 Open Question).
	HadIntradayActivity bool

	CalculationStatus CalculationStatus
	CalculationDate   time.Time
}

// NewPosition creates a zeroed Position for key, as the Position Engine does
// on first event or start-of-day for a key that doesn't exist yet.
func NewPosition(key PositionKey) *Position {
	return &Position{
		Key:               key,
		ContractualQty:    decimal.Zero,
		SettledQty:        decimal.Zero,
		IsHypothecatable:  true,
		CalculationStatus: CalculationPending,
	}
}

// NetSettlementToday is receipt[0] - deliver[0].
func (p *Position) NetSettlementToday() decimal.Decimal {
	return p.Receipt[0].Sub(p.Deliver[0])
}

// TotalDeliveries is the sum of the deliver ladder.
func (p *Position) TotalDeliveries() decimal.Decimal {
	total := decimal.Zero
	for _, d := range p.Deliver {
		total = total.Add(d)
	}
	return total
}

// TotalReceipts is the sum of the receipt ladder.
func (p *Position) TotalReceipts() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.Receipt {
		total = total.Add(r)
	}
	return total
}

// ProjectedSettledQty is settledQty + netSettlementToday.
func (p *Position) ProjectedSettledQty() decimal.Decimal {
	return p.SettledQty.Add(p.NetSettlementToday())
}

// CurrentNetPosition is settledQty + contractualQty.
func (p *Position) CurrentNetPosition() decimal.Decimal {
	return p.SettledQty.Add(p.ContractualQty)
}

// ProjectedNetPosition is currentNetPosition + (totalReceipts - totalDeliveries).
func (p *Position) ProjectedNetPosition() decimal.Decimal {
	return p.CurrentNetPosition().Add(p.TotalReceipts().Sub(p.TotalDeliveries()))
}

// Recompute recomputes the derived invariants and marks the record Valid as
// of businessDate. It does not itself mutate raw ladder/contractual/settled
// fields — callers apply deltas first, then call Recompute.
func (p *Position) Recompute(businessDate time.Time) {
	p.CalculationStatus = CalculationValid
	p.CalculationDate = businessDate
}
