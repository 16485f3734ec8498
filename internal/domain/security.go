package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType enumerates the instrument types spec.md §3 names.
type SecurityType string

const (
	SecurityEquity SecurityType = "Equity"
	SecurityBond   SecurityType = "Bond"
	SecurityETF    SecurityType = "ETF"
	SecurityIndex  SecurityType = "Index"
	SecurityOther  SecurityType = "Other"
)

// SecurityStatus is the lifecycle status of a Security.
type SecurityStatus string

const (
	SecurityActive    SecurityStatus = "Active"
	SecurityInactive  SecurityStatus = "Inactive"
	SecuritySuspended SecurityStatus = "Suspended"
)

// Temperature classifies borrow difficulty: Hard-To-Borrow vs General
// Collateral (spec.md GLOSSARY).
type Temperature string

const (
	TemperatureHTB     Temperature = "HTB"
	TemperatureGC      Temperature = "GC"
	TemperatureUnknown Temperature = "Unknown"
)

// Security is an immutable reference entity, created/updated by reference-
// data ingress and referenced by every other entity by id only.
type Security struct {
	InternalID     string            `json:"internalId"`
	Type           SecurityType      `json:"type"`
	Issuer         string            `json:"issuer"`
	Market         string            `json:"market"`
	Status         SecurityStatus    `json:"status"`
	IsBasketProduct bool             `json:"isBasketProduct"`
	Identifiers    map[string]string `json:"identifiers"` // e.g. {"ISIN": "...", "CUSIP": "..."}
	LastPrice      Money             `json:"lastPrice"`
	LastPriceTime  time.Time         `json:"lastPriceTime"`
	Temperature    Temperature       `json:"temperature"`
	LotSize        Decimal           `json:"lotSize"`
}

// IsActive reports whether the security is eligible for inventory/position
// processing.
func (s Security) IsActive() bool {
	return s.Status == SecurityActive
}

// DecrementPercentage returns the decrement rate applied when reserving
// quantity against a security of a given temperature: HTB=100%, GC=20%,
// anything else=10%. The locate workflow applies this table to compute a
// request's decrement quantity.
func DecrementPercentage(t Temperature) decimal.Decimal {
	switch t {
	case TemperatureHTB:
		return decimal.NewFromInt(100)
	case TemperatureGC:
		return decimal.NewFromInt(20)
	default:
		return decimal.NewFromInt(10)
	}
}
