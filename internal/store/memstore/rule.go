package memstore

import (
	"context"
	"fmt"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

func ruleKey(name string, version int) string {
	return fmt.Sprintf("%s|%d", name, version)
}

type ruleRepo struct{ s *MemStore }

func (r ruleRepo) Get(ctx context.Context, name string, version int) (*domain.CalculationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.rules[ruleKey(name, version)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r ruleRepo) Save(ctx context.Context, rule *domain.CalculationRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *rule
	r.s.rules[ruleKey(rule.Name, rule.Version)] = &cp
	return nil
}

func (r ruleRepo) ListActive(ctx context.Context, ruleType domain.CalculationType, market string) ([]*domain.CalculationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.CalculationRule
	for _, v := range r.s.rules {
		if v.Status != domain.RuleActive {
			continue
		}
		if v.RuleType != ruleType {
			continue
		}
		if market != "" && v.Market != "" && v.Market != market {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r ruleRepo) ListAll(ctx context.Context) ([]*domain.CalculationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.CalculationRule
	for _, v := range r.s.rules {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}
