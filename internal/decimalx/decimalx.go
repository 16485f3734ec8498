// Package decimalx wraps github.com/shopspring/decimal with the fixed-scale
// helpers IMS needs: every quantity, price, rate and money value in the
// domain model is a decimal.Decimal, never a float64 (spec.md §9: "the spec
// MANDATES fixed-scale decimal throughout — no binary floating-point for
// money or quantities").
package decimalx

import "github.com/shopspring/decimal"

// Zero is the canonical zero value, re-exported for readability at call sites.
var Zero = decimal.Zero

// Scale is the default decimal scale (places after the point) used when
// quantities are expressed in whole shares/units with up to 6 fractional
// digits (sufficient for fractional-share lots seen in the corpus).
const Scale = 6

// Epsilon is one unit of the decimal scale: the tolerance spec.md §8 uses to
// distinguish an exact-boundary Approved validation from a just-short
// Rejected one ("limit == used + quantity - epsilon").
var Epsilon = decimal.New(1, -Scale)

// RoundLot rounds qty to the nearest multiple of lotSize using round-half-
// to-even (banker's rounding), as spec.md §4.2 step 1 requires for basket
// expansion. A non-positive lotSize disables rounding (returns qty as-is).
func RoundLot(qty decimal.Decimal, lotSize decimal.Decimal) decimal.Decimal {
	if lotSize.Sign() <= 0 {
		return qty
	}
	units := qty.DivRound(lotSize, Scale+4)
	roundedUnits := units.RoundBank(0)
	return roundedUnits.Mul(lotSize)
}

// ExactlyEqual reports whether a and b are exactly equal (no epsilon). Used
// for the §8 idempotence property: applying then reversing a delta must
// return a decimal field to its prior value byte-for-byte.
func ExactlyEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

// WithinEpsilon reports whether a and b differ by strictly less than
// Epsilon — used nowhere in Approved/Rejected boundary logic (which is
// exact), but available for reconciliation/diagnostic comparisons.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// Sum adds a list of decimals, returning Zero for an empty list.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// Pct returns v scaled by pct/100, e.g. Pct(qty, decimal.NewFromInt(20)) is
// 20% of qty — used by the locate decrement table (HTB=100%, GC=20%, default=10%).
func Pct(v decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(decimal.NewFromInt(100))
}
