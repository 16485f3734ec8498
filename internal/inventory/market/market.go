// Package market holds the market-specific post-processing rules the
// inventory engine applies after the generic rule engine decision, for
// markets whose local regulation changes what counts as available supply
// (spec.md §4.3).
package market

import (
	"github.com/shopspring/decimal"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// PostRule adjusts an in-progress availability calculation for one
// market's local rules. available is the availability computed so far;
// settled/forPledge/borrowed are the raw position-derived quantities the
// generic calculation already summed;
// PostRule returns the (possibly reduced) available quantity.
type PostRule func(calcType domain.CalculationType, available, settled, forPledge, borrowed decimal.Decimal) decimal.Decimal

// Registry maps a market code to its PostRule. Markets absent from the
// registry get the generic calculation unmodified.
var Registry = map[string]PostRule{
	"JP": japanShortSellAvailability,
	"TW": taiwanExcludeRelending,
}

// japanShortSellAvailability caps short-sell availability at the sum of
// settled and for-pledge quantities: Japan's settlement system requires borrow
// coverage to be drawn from settled inventory plus anything already
// pledged, not from unsettled contractual positions (spec.md §4.3 JP
// override).
func japanShortSellAvailability(calcType domain.CalculationType, available, settled, forPledge, borrowed decimal.Decimal) decimal.Decimal {
	if calcType != domain.CalcShortSell {
		return available
	}
	combined := settled.Add(forPledge)
	if combined.LessThan(available) {
		return combined
	}
	return available
}

// taiwanExcludeRelending removes borrowed-and-not-yet-returned shares from
// the inventory available for further lending: Taiwan prohibits re-lending
// borrowed stock (spec.md §4.3 TW override).
func taiwanExcludeRelending(calcType domain.CalculationType, available, settled, forPledge, borrowed decimal.Decimal) decimal.Decimal {
	if calcType != domain.CalcForLoan {
		return available
	}
	reduced := available.Sub(borrowed)
	if reduced.IsNegative() {
		return decimal.Zero
	}
	return reduced
}
