package memstore

import (
	"context"
	"time"
)

type dedupRepo struct{ s *MemStore }

func (r dedupRepo) SeenRecently(ctx context.Context, eventID string, window time.Duration) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seenAt, ok := r.s.dedup[eventID]
	if !ok {
		return false, nil
	}
	return time.Since(seenAt) < window, nil
}

func (r dedupRepo) Record(ctx context.Context, eventID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.dedup[eventID] = at
	return nil
}

func (r dedupRepo) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, at := range r.s.dedup {
		if at.Before(olderThan) {
			delete(r.s.dedup, id)
			n++
		}
	}
	return n, nil
}
