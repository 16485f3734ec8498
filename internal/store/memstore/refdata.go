package memstore

import (
	"context"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type securityRepo struct{ s *MemStore }

func (r securityRepo) Get(ctx context.Context, internalID string) (*domain.Security, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.securities[internalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r securityRepo) Save(ctx context.Context, sec *domain.Security) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sec
	r.s.securities[sec.InternalID] = &cp
	return nil
}

type indexCompRepo struct{ s *MemStore }

func (r indexCompRepo) Get(ctx context.Context, parentSecurityID string, asOf time.Time) (*domain.IndexComposition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.indexComps[parentSecurityID] {
		if c.EffectiveOn(asOf) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r indexCompRepo) Save(ctx context.Context, comp *domain.IndexComposition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *comp
	r.s.indexComps[comp.ParentSecurityID] = append(r.s.indexComps[comp.ParentSecurityID], &cp)
	return nil
}

type contractRepo struct{ s *MemStore }

func (r contractRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.Contract, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Contract
	for _, c := range r.s.contracts[securityID] {
		if c.BusinessDate.Equal(businessDate) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r contractRepo) Save(ctx context.Context, c domain.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contracts[c.SecurityID] = append(r.s.contracts[c.SecurityID], c)
	return nil
}

type externalAvailRepo struct{ s *MemStore }

func (r externalAvailRepo) Get(ctx context.Context, securityID string, businessDate time.Time, source string) (*domain.ExternalAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.externalAvail[securityID] {
		if e.BusinessDate.Equal(businessDate) && e.SourceName == source {
			cp := e
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r externalAvailRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]domain.ExternalAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ExternalAvailability
	for _, e := range r.s.externalAvail[securityID] {
		if e.BusinessDate.Equal(businessDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Save replaces any existing record for the same (securityID, businessDate,
// source) tuple: last value wins per source (spec.md §6).
func (r externalAvailRepo) Save(ctx context.Context, ext domain.ExternalAvailability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.externalAvail[ext.SecurityID]
	for i, e := range list {
		if e.BusinessDate.Equal(ext.BusinessDate) && e.SourceName == ext.SourceName {
			list[i] = ext
			return nil
		}
	}
	r.s.externalAvail[ext.SecurityID] = append(list, ext)
	return nil
}
