package domain

import "time"

// IndexConstituent is a weighted parent -> constituent linkage.
type IndexConstituent struct {
	ConstituentSecurityID string  `json:"constituentSecurityId"`
	Weight                Decimal `json:"weight"`
}

// IndexComposition describes a basket product's constituents, effective for
// a date range. Basket expansion (spec.md §4.2 step 1) uses the composition
// effective on the trade's business date.
type IndexComposition struct {
	ParentSecurityID string             `json:"parentSecurityId"`
	Constituents     []IndexConstituent `json:"constituents"`
	EffectiveDate    time.Time          `json:"effectiveDate"`
	ExpiryDate       *time.Time         `json:"expiryDate"` // nil = open-ended
}

// EffectiveOn reports whether this composition applies on businessDate.
func (c IndexComposition) EffectiveOn(businessDate time.Time) bool {
	if businessDate.Before(c.EffectiveDate) {
		return false
	}
	if c.ExpiryDate != nil && !businessDate.Before(*c.ExpiryDate) {
		return false
	}
	return true
}
