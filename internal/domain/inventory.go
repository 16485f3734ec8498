package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculationType enumerates the inventory availability calculations
// spec.md §3 names.
type CalculationType string

const (
	CalcForLoan   CalculationType = "ForLoan"
	CalcForPledge CalculationType = "ForPledge"
	CalcShortSell CalculationType = "ShortSell"
	CalcLongSell  CalculationType = "LongSell"
	CalcLocate    CalculationType = "Locate"
	CalcOverborrow CalculationType = "Overborrow"
)

// InventoryKey identifies an InventoryAvailability record. CounterpartyID
// and AggregationUnitID are optional (empty string means "not scoped").
type InventoryKey struct {
	SecurityID        string
	CounterpartyID    string // optional
	AggregationUnitID string // optional
	CalculationType   CalculationType
	BusinessDate      time.Time
}

// InventoryAvailability is owned exclusively by the Inventory Engine.
// Invariant (spec.md §3): AvailableQuantity + ReservedQuantity <=
// GrossQuantity, and AvailableQuantity >= 0, at the end of any atomic
// update — enforced by Clamp in the inventory engine, not here.
type InventoryAvailability struct {
	AuditHeader

	Key InventoryKey

	GrossQuantity     decimal.Decimal
	NetQuantity       decimal.Decimal
	AvailableQuantity decimal.Decimal
	ReservedQuantity  decimal.Decimal
	DecrementQuantity decimal.Decimal

	Market          string
	Temperature     Temperature
	BorrowRate      decimal.Decimal
	AppliedRuleName string
	AppliedRuleVersion int

	Status         CalculationStatus
	ExternalSource bool
}

// Invariant reports whether the record satisfies spec.md §3's invariant.
func (a InventoryAvailability) Invariant() bool {
	if a.AvailableQuantity.IsNegative() {
		return false
	}
	return a.AvailableQuantity.Add(a.ReservedQuantity).LessThanOrEqual(a.GrossQuantity)
}

// PositionProvenance marks where a position's quantity originated, used by
// market-specific inventory rules (e.g. Taiwan: borrowed shares must not be
// re-lent).
type PositionProvenance string

const (
	ProvenanceOwned    PositionProvenance = "Owned"
	ProvenanceBorrowed PositionProvenance = "Borrowed"
	ProvenancePledged  PositionProvenance = "Pledged"
)

// Contract represents a securities-lending/borrowing contract affecting a
// security's inventory. Contracts are reference entities owned elsewhere;
// the Inventory Engine only reads them.
type Contract struct {
	ContractID  string
	SecurityID  string
	BookID      string
	Quantity    decimal.Decimal
	Provenance  PositionProvenance
	BusinessDate time.Time
	Status      string // Active, Closed
}

// ExternalAvailability is an inbound feed record: "last value wins by
// source" (spec.md §6).
type ExternalAvailability struct {
	SecurityID   string
	BusinessDate time.Time
	Quantity     decimal.Decimal
	SourceName   string
	ReceivedAt   time.Time
}
