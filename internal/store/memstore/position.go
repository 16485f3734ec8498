package memstore

import (
	"context"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type positionRepo struct{ s *MemStore }

func (r positionRepo) Get(ctx context.Context, key domain.PositionKey) (*domain.Position, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.positions[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r positionRepo) Save(ctx context.Context, pos *domain.Position) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.positions[pos.Key]; ok && existing.Version != pos.Version-1 && pos.Version != 0 {
		return store.ErrVersionConflict
	}
	cp := *pos
	r.s.positions[pos.Key] = &cp
	return nil
}

func (r positionRepo) SaveBatch(ctx context.Context, positions []*domain.Position) error {
	for _, p := range positions {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r positionRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.Position, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Position
	for k, p := range r.s.positions {
		if k.SecurityInternalID == securityID && k.BusinessDate.Equal(businessDate) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r positionRepo) ListByBook(ctx context.Context, bookID string, businessDate time.Time) ([]*domain.Position, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Position
	for k, p := range r.s.positions {
		if k.BookID == bookID && k.BusinessDate.Equal(businessDate) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}
