// Package ingress implements the Event Ingress & Dispatcher: validation,
// deduplication, hash-bucketed ordered dispatch to engine handlers, and
// backpressure (spec.md §4.1, §5).
package ingress

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/metrics"
	"github.com/primebrokerage/ims-core/internal/store"
)

// Handler processes one event for a single EventType and reports a
// classified error (nil on success). The Dispatcher uses the error's
// Kind to decide retry, drop, or dead-letter.
type Handler func(ctx context.Context, evt domain.Event) error

// DeadLetterSink receives events whose handling failed Permanently.
type DeadLetterSink interface {
	Send(evt domain.Event, cause error)
}

// MemoryDeadLetterSink buffers dead-lettered events in memory, for tests
// and single-node deployments without an external DLQ.
type MemoryDeadLetterSink struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
}

// DeadLetterEntry pairs an event with the error that dead-lettered it.
type DeadLetterEntry struct {
	Event domain.Event
	Cause error
}

func NewMemoryDeadLetterSink() *MemoryDeadLetterSink {
	return &MemoryDeadLetterSink{}
}

func (s *MemoryDeadLetterSink) Send(evt domain.Event, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, DeadLetterEntry{Event: evt, Cause: cause})
}

// Entries returns a snapshot of every dead-lettered event.
func (s *MemoryDeadLetterSink) Entries() []DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Config tunes the dispatcher's worker pool, bucket fan-out, and
// backpressure thresholds (spec.md §5 defaults).
type Config struct {
	WorkerCount   int
	BucketCount   int
	HighWatermark int
	LowWatermark  int
	DedupWindow   time.Duration
}

// DefaultConfig returns spec.md §5's documented defaults, sized against
// the host's CPU count.
func DefaultConfig() Config {
	workers := runtime.NumCPU() * 4
	if workers > 64 {
		workers = 64
	}
	if workers < 1 {
		workers = 1
	}
	return Config{
		WorkerCount:   workers,
		BucketCount:   workers * 8,
		HighWatermark: 10000,
		LowWatermark:  2500,
		DedupWindow:   24 * time.Hour,
	}
}

type bucket struct {
	mu     sync.Mutex
	ch     chan domain.Event
	paused bool
}

// Dispatcher routes inbound events to registered per-EventType handlers,
// preserving per-security order via hash-bucketed single-consumer queues
// and refusing new work once a bucket's backlog crosses HighWatermark.
type Dispatcher struct {
	cfg        Config
	buckets    []*bucket
	handlers   map[domain.EventType][]Handler
	dedup      store.DedupStore
	deadLetter DeadLetterSink
	backoff    ierr.Backoff
	metrics    *metrics.Metrics
	log        zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// WithMetrics attaches m so Dispatch/handle record the operational counters
// and histograms spec.md §6 names. Safe to call before Start; a nil m
// disables recording.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// New returns a Dispatcher whose worker pool has not yet been started;
// call Start to begin consuming.
func New(cfg Config, dedup store.DedupStore, deadLetter DeadLetterSink, log zerolog.Logger) *Dispatcher {
	buckets := make([]*bucket, cfg.BucketCount)
	for i := range buckets {
		buckets[i] = &bucket{ch: make(chan domain.Event, cfg.HighWatermark)}
	}
	return &Dispatcher{
		cfg:        cfg,
		buckets:    buckets,
		handlers:   make(map[domain.EventType][]Handler),
		dedup:      dedup,
		deadLetter: deadLetter,
		backoff:    ierr.DefaultBackoff(),
		log:        log.With().Str("component", "ingress_dispatcher").Logger(),
		stopCh:     make(chan struct{}),
	}
}

// RegisterHandler subscribes handler to every event of eventType, invoked
// in registration order (spec.md §4.1 dispatch table).
func (d *Dispatcher) RegisterHandler(eventType domain.EventType, handler Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Start launches the worker pool. Each worker owns a disjoint, contiguous
// slice of buckets and fans them in with reflect.Select so one worker can
// service several low-traffic buckets without spawning a goroutine per
// bucket, while every bucket is still drained by exactly one goroutine
// (preserving per-securityId order).
func (d *Dispatcher) Start() {
	if d.cfg.WorkerCount < 1 {
		return
	}
	perWorker := (len(d.buckets) + d.cfg.WorkerCount - 1) / d.cfg.WorkerCount
	for w := 0; w < d.cfg.WorkerCount; w++ {
		lo := w * perWorker
		hi := lo + perWorker
		if lo >= len(d.buckets) {
			break
		}
		if hi > len(d.buckets) {
			hi = len(d.buckets)
		}
		d.wg.Add(1)
		go d.runWorker(d.buckets[lo:hi])
	}
}

// Stop signals every worker to return, then waits for them. A worker returns
// as soon as it observes the signal, so events still queued in its buckets
// may be left unprocessed.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(owned []*bucket) {
	defer d.wg.Done()

	cases := make([]reflect.SelectCase, 0, len(owned)+1)
	for _, b := range owned {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(b.ch)})
	}
	stopIdx := len(cases)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(d.stopCh)})

	for {
		chosen, recv, ok := reflect.Select(cases)
		if chosen == stopIdx {
			return
		}
		if !ok {
			continue
		}
		evt := recv.Interface().(domain.Event)
		d.handle(context.Background(), evt)
	}
}

// Dispatch validates, deduplicates, and enqueues evt onto its security's
// bucket, returning the dispatcher's immediate verdict. Handled means the
// event was accepted (already processed, in the case of a duplicate, or
// queued for processing); Deferred means the bucket is backpressured and
// the caller should retry; Rejected means validation failed and the event
// will never be retried.
func (d *Dispatcher) Dispatch(ctx context.Context, evt domain.Event) eventbus.Outcome {
	outcome := d.dispatch(ctx, evt)
	if d.metrics != nil {
		d.metrics.RecordEvent(string(evt.Header.EventType), string(outcome))
	}
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, evt domain.Event) eventbus.Outcome {
	if err := Validate(evt, time.Now().UTC()); err != nil {
		d.log.Warn().Str("eventId", evt.Header.EventID).Err(err).Msg("event failed validation, not retried")
		return eventbus.Rejected
	}

	seen, err := d.dedup.SeenRecently(ctx, evt.Header.EventID, d.cfg.DedupWindow)
	if err != nil {
		d.log.Warn().Err(err).Msg("dedup lookup failed, treating event as deferred")
		return eventbus.Deferred
	}
	if seen {
		return eventbus.Handled
	}

	b := d.buckets[bucketFor(evt, len(d.buckets))]
	b.mu.Lock()
	if b.paused && len(b.ch) <= d.cfg.LowWatermark {
		b.paused = false
	}
	if len(b.ch) >= d.cfg.HighWatermark {
		b.paused = true
	}
	paused := b.paused
	if d.metrics != nil {
		d.metrics.SetQueueDepth(fmt.Sprintf("%d", bucketFor(evt, len(d.buckets))), len(b.ch))
	}
	b.mu.Unlock()
	if paused {
		return eventbus.Deferred
	}

	select {
	case b.ch <- evt:
		if err := d.dedup.Record(ctx, evt.Header.EventID, time.Now().UTC()); err != nil {
			d.log.Warn().Err(err).Str("eventId", evt.Header.EventID).Msg("failed to record dedup entry")
		}
		return eventbus.Handled
	default:
		return eventbus.Deferred
	}
}

// handle runs every registered handler for evt's type, classifying
// failures: Transient errors retry with backoff up to the default max
// attempts before falling back to dead-letter; everything else
// dead-letters immediately (spec.md §4.1 failure semantics).
func (d *Dispatcher) handle(ctx context.Context, evt domain.Event) {
	start := time.Now()
	handlers := d.handlers[evt.Header.EventType]
	if len(handlers) == 0 {
		d.log.Warn().Str("eventType", string(evt.Header.EventType)).Msg("no handler registered for event type")
		return
	}
	for _, h := range handlers {
		d.runWithRetry(ctx, evt, h)
	}
	if d.metrics != nil {
		d.metrics.ObserveEventLatency(evt.Header.EventSubType, time.Since(start))
	}
}

func (d *Dispatcher) runWithRetry(ctx context.Context, evt domain.Event, h Handler) {
	attempt := 1
	for {
		err := h(ctx, evt)
		if err == nil {
			return
		}
		if ierr.Classify(err) != ierr.Transient {
			d.deadLetter.Send(evt, err)
			return
		}
		delay, exhausted := d.backoff.Delay(attempt)
		if exhausted {
			d.deadLetter.Send(evt, err)
			return
		}
		select {
		case <-time.After(delay):
		case <-d.stopCh:
			return
		}
		attempt++
	}
}

func bucketFor(evt domain.Event, bucketCount int) int {
	return int(fnv32(SecurityIDOf(evt)) % uint32(bucketCount))
}

// SecurityIDOf extracts the security identifier that determines an event's
// ordering bucket and Kafka partition key (spec.md §6: "Partition key is
// securityId").
func SecurityIDOf(evt domain.Event) string {
	switch {
	case evt.Trade != nil:
		return evt.Trade.SecurityID
	case evt.Contract != nil:
		return evt.Contract.Contract.SecurityID
	case evt.Position != nil:
		return evt.Position.Key.SecurityInternalID
	case evt.Inventory != nil:
		return evt.Inventory.External.SecurityID
	case evt.Market != nil:
		return evt.Market.SecurityID
	case evt.Locate != nil:
		return evt.Locate.Request.SecurityID
	default:
		return evt.Header.EventID
	}
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
