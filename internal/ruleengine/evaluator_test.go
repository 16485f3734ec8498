package ruleengine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/primebrokerage/ims-core/internal/domain"
)

func TestEvaluateDefaultsToIncludeWhenNoRuleMatches(t *testing.T) {
	rs := Compile(nil)
	dec := Evaluate(rs, Context{"market": "US"})
	assert.True(t, dec.Include)
	assert.False(t, dec.Overborrow)
}

func TestEvaluateAppliesHigherPriorityRuleFirstAndStop(t *testing.T) {
	rules := []*domain.CalculationRule{
		{
			Name: "htb-rate", Version: 1, Priority: 10, Status: domain.RuleActive,
			Conditions: []domain.Condition{{Attribute: "temperature", Operator: domain.OpEq, Value: "HTB"}},
			Actions: []domain.Action{
				{Kind: domain.ActionSetBorrowRate, Rate: decimal.NewFromFloat(0.05)},
				{Kind: domain.ActionStop},
			},
		},
		{
			Name: "default-exclude", Version: 1, Priority: 20, Status: domain.RuleActive,
			Conditions: nil,
			Actions:    []domain.Action{{Kind: domain.ActionExclude}},
		},
	}
	rs := Compile(rules)

	dec := Evaluate(rs, Context{"temperature": "HTB"})
	assert.True(t, dec.BorrowRateSet)
	assert.True(t, dec.BorrowRate.Equal(decimal.NewFromFloat(0.05)))
	assert.Equal(t, "htb-rate", dec.AppliedRuleName)
	// Stop halted the chain, so the lower-priority exclude rule never ran.
	assert.True(t, dec.Include)
}

func TestEvaluateConditionOperators(t *testing.T) {
	cases := []struct {
		name string
		cond domain.Condition
		ctx  Context
		want bool
	}{
		{"eq match", domain.Condition{Attribute: "market", Operator: domain.OpEq, Value: "US"}, Context{"market": "US"}, true},
		{"ne match", domain.Condition{Attribute: "market", Operator: domain.OpNe, Value: "US"}, Context{"market": "JP"}, true},
		{"gt decimal", domain.Condition{Attribute: "qty", Operator: domain.OpGt, Value: decimal.NewFromInt(10)}, Context{"qty": decimal.NewFromInt(20)}, true},
		{"in list", domain.Condition{Attribute: "market", Operator: domain.OpIn, Value: []string{"US", "JP"}}, Context{"market": "JP"}, true},
		{"notIn list", domain.Condition{Attribute: "market", Operator: domain.OpNotIn, Value: []string{"US", "JP"}}, Context{"market": "TW"}, true},
		{"exists true", domain.Condition{Attribute: "foo", Operator: domain.OpExists, Value: true}, Context{"foo": 1}, true},
		{"exists false absent", domain.Condition{Attribute: "foo", Operator: domain.OpExists, Value: false}, Context{}, true},
		{"matches regex", domain.Condition{Attribute: "id", Operator: domain.OpMatches, Value: "^AAPL.*"}, Context{"id": "AAPL.US"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalCondition(tc.cond, tc.ctx))
		})
	}
}

func TestEvaluateMultiConditionOrLogic(t *testing.T) {
	rule := &domain.CalculationRule{
		Name: "r1", Priority: 1, Status: domain.RuleActive,
		Conditions: []domain.Condition{
			{Attribute: "market", Operator: domain.OpEq, Value: "US"},
			{Attribute: "market", Operator: domain.OpEq, Value: "JP", LogicalOperator: domain.LogicalOr},
		},
		Actions: []domain.Action{{Kind: domain.ActionMarkOverborrow}},
	}
	rs := Compile([]*domain.CalculationRule{rule})

	dec := Evaluate(rs, Context{"market": "JP"})
	assert.True(t, dec.Overborrow)
}

func TestExplainReportsPerRuleMatch(t *testing.T) {
	rules := []*domain.CalculationRule{
		{Name: "r1", Priority: 1, Status: domain.RuleActive, Conditions: []domain.Condition{{Attribute: "market", Operator: domain.OpEq, Value: "US"}}},
		{Name: "r2", Priority: 2, Status: domain.RuleActive, Conditions: []domain.Condition{{Attribute: "market", Operator: domain.OpEq, Value: "JP"}}},
	}
	rs := Compile(rules)
	traces := Explain(rs, Context{"market": "US"})
	assert := assert.New(t)
	assert.Len(traces, 2)
	assert.True(traces[0].Matched)
	assert.False(traces[1].Matched)
}
