package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocateState is the LocateRequest state machine (spec.md §4.5):
// Pending -> Approved|Rejected|Cancelled; Approved -> Expired.
type LocateState string

const (
	LocatePending   LocateState = "Pending"
	LocateApproved  LocateState = "Approved"
	LocateRejected  LocateState = "Rejected"
	LocateCancelled LocateState = "Cancelled"
	LocateExpired   LocateState = "Expired"
)

// CanTransitionTo reports whether the state machine allows from -> to.
// Transitions are exclusive; there are no reverse transitions.
func CanTransitionTo(from, to LocateState) bool {
	switch from {
	case LocatePending:
		return to == LocateApproved || to == LocateRejected || to == LocateCancelled
	case LocateApproved:
		return to == LocateExpired
	default:
		return false
	}
}

// LocateType distinguishes a short-sale locate from a plain borrow.
type LocateType string

const (
	LocateTypeShortSell LocateType = "ShortSell"
	LocateTypeBorrow    LocateType = "Borrow"
)

// SwapCashIndicator marks whether a locate is for a swap or cash trade.
type SwapCashIndicator string

const (
	SwapCashSwap SwapCashIndicator = "Swap"
	SwapCashCash SwapCashIndicator = "Cash"
)

// LocateRequest is keyed by RequestID and owned exclusively by the Locate
// Workflow.
type LocateRequest struct {
	AuditHeader

	RequestID string

	SecurityID        string
	RequestorID       string
	ClientID          string
	AggregationUnitID string

	RequestedQuantity decimal.Decimal
	ApprovedQuantity  decimal.Decimal
	DecrementQuantity decimal.Decimal

	LocateType        LocateType
	SwapCashIndicator SwapCashIndicator

	State             LocateState
	RejectionReason   string
	ExpiryDate        time.Time
	BusinessDate      time.Time
}
