package decimalx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundLotBankersRounding(t *testing.T) {
	lot := decimal.NewFromInt(10)

	// 25 / 10 = 2.5 units -> banker's rounding to even -> 2 units -> 20
	assert.True(t, decimal.NewFromInt(20).Equal(RoundLot(decimal.NewFromInt(25), lot)))
	// 35 / 10 = 3.5 units -> rounds to even -> 4 units -> 40
	assert.True(t, decimal.NewFromInt(40).Equal(RoundLot(decimal.NewFromInt(35), lot)))
}

func TestRoundLotDisabledForNonPositiveLot(t *testing.T) {
	qty := decimal.NewFromInt(123)
	assert.True(t, qty.Equal(RoundLot(qty, decimal.Zero)))
}

func TestEpsilonBoundary(t *testing.T) {
	limit := decimal.NewFromInt(10000)
	used := decimal.NewFromInt(9500)
	quantity := decimal.NewFromInt(500)

	// limit == used + quantity exactly -> not epsilon-short
	remaining := limit.Sub(used)
	assert.True(t, remaining.Equal(quantity))

	// limit == used + quantity - epsilon -> short by exactly one scale unit
	tighterLimit := limit.Sub(Epsilon)
	remaining2 := tighterLimit.Sub(used)
	assert.True(t, remaining2.LessThan(quantity))
}

func TestPctDecrementTable(t *testing.T) {
	qty := decimal.NewFromInt(500)
	assert.True(t, qty.Equal(Pct(qty, decimal.NewFromInt(100)))) // HTB: full
	assert.True(t, decimal.NewFromInt(100).Equal(Pct(qty, decimal.NewFromInt(20))))
	assert.True(t, decimal.NewFromInt(50).Equal(Pct(qty, decimal.NewFromInt(10))))
}
