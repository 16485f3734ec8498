package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementLadder is a view over a Position's ladder fields. It is the
// only way engine code should add deliveries/receipts, since it enforces
// the "offsets outside [0, LadderDepth) are silently ignored" invariant
// (spec.md §3, §4.2 step 3, §8 boundary behaviour: offset 4 included, 5
// ignored).
type SettlementLadder struct {
	pos *Position
}

// NewSettlementLadder wraps pos in a SettlementLadder view.
func NewSettlementLadder(pos *Position) SettlementLadder {
	return SettlementLadder{pos: pos}
}

// NetForDay returns receipt[o] - deliver[o] for offset o. Returns zero for
// an out-of-range offset.
func (l SettlementLadder) NetForDay(o int) decimal.Decimal {
	if o < 0 || o >= LadderDepth {
		return decimal.Zero
	}
	return l.pos.Receipt[o].Sub(l.pos.Deliver[o])
}

// SettlementDateForDay returns businessDate + o calendar days. Settlement
// ladder offsets are calendar-day, not business-day, arithmetic (spec.md §6:
// "settlement offsets use calendar days unless the market calendar marks
// otherwise").
func (l SettlementLadder) SettlementDateForDay(businessDate time.Time, o int) time.Time {
	return businessDate.AddDate(0, 0, o)
}

// OffsetFor returns the ladder offset for a settlement date relative to
// businessDate, and whether that offset falls within [0, LadderDepth).
func OffsetFor(businessDate, settlementDate time.Time) (offset int, inRange bool) {
	days := int(settlementDate.Sub(businessDate).Hours() / 24)
	if days < 0 || days >= LadderDepth {
		return days, false
	}
	return days, true
}

// AddDeliver adds qty to deliver[offset]. Offsets outside [0, LadderDepth)
// are silently ignored per spec.md §3 — this is the sole enforcement point.
func (l SettlementLadder) AddDeliver(offset int, qty decimal.Decimal) {
	if offset < 0 || offset >= LadderDepth {
		return
	}
	l.pos.Deliver[offset] = l.pos.Deliver[offset].Add(qty)
}

// AddReceipt adds qty to receipt[offset]. Offsets outside [0, LadderDepth)
// are silently ignored per spec.md §3.
func (l SettlementLadder) AddReceipt(offset int, qty decimal.Decimal) {
	if offset < 0 || offset >= LadderDepth {
		return
	}
	l.pos.Receipt[offset] = l.pos.Receipt[offset].Add(qty)
}
