package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// OutboxRecord is a pending publication, persisted alongside the entity
// mutation that produced it so the two commit atomically from the
// caller's perspective.
type OutboxRecord struct {
	SequenceID int64
	Event      domain.Event
	CreatedAt  time.Time
	PublishedAt *time.Time
}

// OutboxStore is the persistence contract an Outbox writes through. A
// caller's entity-save and OutboxStore.Append must happen inside the same
// transaction at the store layer for the "saved implies eventually
// published" guarantee to hold. internal/store/sqlitestore's implementation
// writes the outbox row as its own statement, not in a transaction shared
// with the entity save.
type OutboxStore interface {
	Append(ctx context.Context, evt domain.Event) (int64, error)
	Pending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, sequenceID int64) error
}

// Outbox relays OutboxStore-persisted events to an underlying Bus on a
// fixed interval, so a crash between "entity saved" and "event published"
// only delays delivery, it never silently drops the event (spec.md §5:
// "a saved-but-unpublished state must be unobservable to external
// consumers").
type Outbox struct {
	store    OutboxStore
	bus      Bus
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewOutbox returns an Outbox that relays via bus every interval.
func NewOutbox(store OutboxStore, bus Bus, interval time.Duration, log zerolog.Logger) *Outbox {
	if interval <= 0 {
		interval = time.Second
	}
	return &Outbox{
		store:    store,
		bus:      bus,
		interval: interval,
		log:      log.With().Str("component", "outbox").Logger(),
	}
}

// Run relays pending records until ctx is cancelled. It is safe to call at
// most once per Outbox.
func (o *Outbox) Run(ctx context.Context) {
	o.mu.Lock()
	o.stop = make(chan struct{})
	o.stopped = make(chan struct{})
	o.mu.Unlock()
	defer close(o.stopped)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		case <-ticker.C:
			o.relayOnce(ctx)
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (o *Outbox) Stop() {
	o.mu.Lock()
	stop := o.stop
	stopped := o.stopped
	o.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (o *Outbox) relayOnce(ctx context.Context) {
	records, err := o.store.Pending(ctx, 500)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to load pending outbox records")
		return
	}
	for _, rec := range records {
		if err := o.bus.Publish(ctx, rec.Event); err != nil {
			o.log.Error().Err(err).Int64("sequenceId", rec.SequenceID).Msg("failed to publish outbox record, will retry")
			continue
		}
		if err := o.store.MarkPublished(ctx, rec.SequenceID); err != nil {
			o.log.Error().Err(err).Int64("sequenceId", rec.SequenceID).Msg("failed to mark outbox record published")
		}
	}
}
