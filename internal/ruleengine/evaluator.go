package ruleengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// Context is the attribute bag a rule's Conditions are evaluated against.
// Keys are attribute names as used in domain.Condition.Attribute.
type Context map[string]any

// Decision is the accumulated effect of every matching rule's Actions,
// applied in rule-priority order. The inventory engine starts from the
// record's current values and applies Decision on top.
type Decision struct {
	Include        bool
	Status         domain.CalculationStatus
	Temperature    domain.Temperature
	TemperatureSet bool
	BorrowRate     decimal.Decimal
	BorrowRateSet  bool
	ScaleFactors   map[string]decimal.Decimal
	Overborrow     bool
	Stopped        bool

	AppliedRuleName    string
	AppliedRuleVersion int
}

// RuleTrace records whether one rule matched and, if so, which actions it
// applied — returned by Explain for diagnostics.
type RuleTrace struct {
	RuleName    string
	RuleVersion int
	Matched     bool
	Actions     []domain.ActionKind
}

// Evaluate walks rs in priority order. For every rule whose Conditions all
// hold (spec.md §4.4: declared logicalOperator between conditions, AND
// implied when absent) its Actions apply to dec in order. A Stop action
// ends evaluation immediately, including skipping lower-priority rules. If
// no rule matches, the default decision is Include with unchanged
// quantities (spec.md §4.4).
func Evaluate(rs *RuleSet, ctx Context) Decision {
	dec := Decision{Include: true, ScaleFactors: make(map[string]decimal.Decimal)}
	for _, rule := range rs.Rules() {
		if matches(rule.Conditions, ctx) {
			applyActions(rule, &dec)
			if dec.Stopped {
				break
			}
		}
	}
	return dec
}

// Explain returns one RuleTrace per rule in rs, in evaluation order, for
// operational diagnostics — it does not mutate any decision.
func Explain(rs *RuleSet, ctx Context) []RuleTrace {
	traces := make([]RuleTrace, 0, len(rs.Rules()))
	for _, rule := range rs.Rules() {
		matched := matches(rule.Conditions, ctx)
		trace := RuleTrace{RuleName: rule.Name, RuleVersion: rule.Version, Matched: matched}
		if matched {
			for _, a := range rule.Actions {
				trace.Actions = append(trace.Actions, a.Kind)
			}
		}
		traces = append(traces, trace)
	}
	return traces
}

func applyActions(rule *domain.CalculationRule, dec *Decision) {
	for _, action := range rule.Actions {
		switch action.Kind {
		case domain.ActionInclude:
			dec.Include = true
		case domain.ActionExclude:
			dec.Include = false
		case domain.ActionSetStatus:
			dec.Status = action.StatusValue
		case domain.ActionSetTemperature:
			dec.Temperature = action.Temperature
			dec.TemperatureSet = true
		case domain.ActionSetBorrowRate:
			dec.BorrowRate = action.Rate
			dec.BorrowRateSet = true
		case domain.ActionScale:
			dec.ScaleFactors[action.ScaleField] = action.ScaleFactor
		case domain.ActionMarkOverborrow:
			dec.Overborrow = true
		case domain.ActionStop:
			dec.Stopped = true
		}
	}
	dec.AppliedRuleName = rule.Name
	dec.AppliedRuleVersion = rule.Version
}

// matches reports whether every Condition in conds holds against ctx,
// combined left-to-right by each condition's LogicalOperator (the first
// condition's operator is ignored; AND is implied when unspecified).
func matches(conds []domain.Condition, ctx Context) bool {
	if len(conds) == 0 {
		return true
	}
	result := evalCondition(conds[0], ctx)
	for _, c := range conds[1:] {
		cur := evalCondition(c, ctx)
		if c.LogicalOperator == domain.LogicalOr {
			result = result || cur
		} else {
			result = result && cur
		}
	}
	return result
}

func evalCondition(c domain.Condition, ctx Context) bool {
	actual, present := ctx[c.Attribute]
	if c.Operator == domain.OpExists {
		want, _ := c.Value.(bool)
		if want {
			return present
		}
		return !present
	}
	if !present {
		return false
	}

	switch c.Operator {
	case domain.OpEq:
		return compareEqual(actual, c.Value)
	case domain.OpNe:
		return !compareEqual(actual, c.Value)
	case domain.OpLt, domain.OpLe, domain.OpGt, domain.OpGe:
		return compareOrdered(actual, c.Value, c.Operator)
	case domain.OpIn:
		return containsValue(c.Value, actual)
	case domain.OpNotIn:
		return !containsValue(c.Value, actual)
	case domain.OpMatches:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		str := fmt.Sprintf("%v", actual)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(str)
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		if db, ok := b.(decimal.Decimal); ok {
			return da.Equal(db)
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(a, b any, op domain.Operator) bool {
	da, aok := toDecimal(a)
	db, bok := toDecimal(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case domain.OpLt:
		return da.LessThan(db)
	case domain.OpLe:
		return da.LessThanOrEqual(db)
	case domain.OpGt:
		return da.GreaterThan(db)
	case domain.OpGe:
		return da.GreaterThanOrEqual(db)
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	}
	return decimal.Zero, false
}

func containsValue(set any, actual any) bool {
	switch items := set.(type) {
	case []string:
		actualStr := fmt.Sprintf("%v", actual)
		for _, it := range items {
			if it == actualStr {
				return true
			}
		}
	case string:
		// comma-separated shorthand
		for _, it := range strings.Split(items, ",") {
			if strings.TrimSpace(it) == fmt.Sprintf("%v", actual) {
				return true
			}
		}
	}
	return false
}
