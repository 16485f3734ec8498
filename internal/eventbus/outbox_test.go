package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebrokerage/ims-core/internal/domain"
)

type memOutboxStore struct {
	mu      sync.Mutex
	records []OutboxRecord
	nextSeq int64
}

func newMemOutboxStore() *memOutboxStore {
	return &memOutboxStore{}
}

func (s *memOutboxStore) Append(ctx context.Context, evt domain.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.records = append(s.records, OutboxRecord{SequenceID: s.nextSeq, Event: evt, CreatedAt: time.Now()})
	return s.nextSeq, nil
}

func (s *memOutboxStore) Pending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxRecord
	for _, r := range s.records {
		if r.PublishedAt == nil {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memOutboxStore) MarkPublished(ctx context.Context, sequenceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].SequenceID == sequenceID {
			now := time.Now()
			s.records[i].PublishedAt = &now
		}
	}
	return nil
}

func TestOutboxRelaysPendingRecordsAndMarksPublished(t *testing.T) {
	store := newMemOutboxStore()
	bus := NewMemoryBus(zerolog.Nop())

	var mu sync.Mutex
	var receivedIDs []string
	bus.Subscribe(domain.EventTrade, func(ctx context.Context, evt domain.Event) Outcome {
		mu.Lock()
		receivedIDs = append(receivedIDs, evt.Header.EventID)
		mu.Unlock()
		return Handled
	})

	_, err := store.Append(context.Background(), domain.Event{Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade}})
	require.NoError(t, err)

	outbox := NewOutbox(store, bus, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go outbox.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(receivedIDs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	outbox.Stop()

	pending, err := store.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
