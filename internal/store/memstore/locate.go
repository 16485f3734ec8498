package memstore

import (
	"context"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/store"
)

type locateRepo struct{ s *MemStore }

func (r locateRepo) Get(ctx context.Context, requestID string) (*domain.LocateRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.locates[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r locateRepo) Save(ctx context.Context, req *domain.LocateRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *req
	r.s.locates[req.RequestID] = &cp
	return nil
}

func (r locateRepo) ListPendingExpiry(ctx context.Context, asOf time.Time) ([]*domain.LocateRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.LocateRequest
	for _, v := range r.s.locates {
		if v.State == domain.LocateApproved && !v.ExpiryDate.After(asOf) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r locateRepo) ListBySecurity(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.LocateRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.LocateRequest
	for _, v := range r.s.locates {
		if v.SecurityID == securityID && v.BusinessDate.Equal(businessDate) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}
