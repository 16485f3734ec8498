package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleStatus is the lifecycle status of a CalculationRule.
type RuleStatus string

const (
	RuleActive   RuleStatus = "Active"
	RuleInactive RuleStatus = "Inactive"
	RuleDraft    RuleStatus = "Draft"
)

// Operator is one of the closed set of condition comparison operators
// spec.md §4.4 names.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpLt      Operator = "lt"
	OpLe      Operator = "le"
	OpGt      Operator = "gt"
	OpGe      Operator = "ge"
	OpIn      Operator = "in"
	OpNotIn   Operator = "notIn"
	OpMatches Operator = "matches"
	OpExists  Operator = "exists"
)

// LogicalOperator joins successive Conditions in a rule; AND is implicit
// when unspecified (spec.md §4.4 step 2).
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition is one term of a rule's left-to-right boolean expression.
type Condition struct {
	Attribute string
	Operator  Operator
	Value     any // string, decimal.Decimal, []string, or bool depending on Operator

	// LogicalOperator joins this condition to the PREVIOUS one in the
	// chain. The first condition's LogicalOperator is ignored.
	LogicalOperator LogicalOperator
}

// ActionKind is the closed set of rule actions spec.md §4.4 names.
type ActionKind string

const (
	ActionInclude        ActionKind = "Include"
	ActionExclude        ActionKind = "Exclude"
	ActionSetStatus      ActionKind = "SetStatus"
	ActionSetTemperature ActionKind = "SetTemperature"
	ActionSetBorrowRate  ActionKind = "SetBorrowRate"
	ActionScale          ActionKind = "Scale"
	ActionMarkOverborrow ActionKind = "MarkOverborrow"
	ActionStop           ActionKind = "Stop"
)

// Action is one step of a rule's action list, executed in declared order on
// a match.
type Action struct {
	Kind        ActionKind
	StatusValue CalculationStatus // for SetStatus
	Temperature Temperature       // for SetTemperature
	Rate        decimal.Decimal   // for SetBorrowRate
	ScaleField  string            // for Scale: which field to scale
	ScaleFactor decimal.Decimal   // for Scale
}

// CalculationRule is keyed by (Name, Version) and is a prioritised
// conditional program evaluated by the rule engine (spec.md §4.4).
type CalculationRule struct {
	Name    string
	Version int

	RuleType CalculationType
	Market   string
	Priority int

	EffectiveDate time.Time
	ExpiryDate    time.Time // zero value = open-ended

	Conditions []Condition
	Actions    []Action

	Status RuleStatus
}

// EffectiveOn reports whether the rule brackets businessDate.
func (r CalculationRule) EffectiveOn(businessDate time.Time) bool {
	if businessDate.Before(r.EffectiveDate) {
		return false
	}
	if !r.ExpiryDate.IsZero() && businessDate.After(r.ExpiryDate) {
		return false
	}
	return true
}
