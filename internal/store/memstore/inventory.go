package memstore

import (
	"context"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type inventoryRepo struct{ s *MemStore }

func (r inventoryRepo) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.inventory[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r inventoryRepo) Save(ctx context.Context, inv *domain.InventoryAvailability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *inv
	r.s.inventory[inv.Key] = &cp
	return nil
}

func (r inventoryRepo) SaveBatch(ctx context.Context, records []*domain.InventoryAvailability) error {
	for _, rec := range records {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r inventoryRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.InventoryAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.InventoryAvailability
	for k, v := range r.s.inventory {
		if k.SecurityID == securityID && k.BusinessDate.Equal(businessDate) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}
