package memstore

import (
	"context"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type clientLimitRepo struct{ s *MemStore }

func (r clientLimitRepo) Get(ctx context.Context, key domain.LimitKey) (*domain.ClientLimit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.clientLimits[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r clientLimitRepo) Save(ctx context.Context, limit *domain.ClientLimit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *limit
	r.s.clientLimits[limit.Key] = &cp
	return nil
}

type auLimitRepo struct{ s *MemStore }

func (r auLimitRepo) Get(ctx context.Context, key domain.LimitKey) (*domain.AggregationUnitLimit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.auLimits[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r auLimitRepo) Save(ctx context.Context, limit *domain.AggregationUnitLimit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *limit
	r.s.auLimits[limit.Key] = &cp
	return nil
}
