// Package eventbus defines the publish/subscribe contract the ingress
// dispatcher and downstream engines use to hand off domain.Event values,
// and an in-process implementation for tests and single-node deployments.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// Handler processes one event and reports how the dispatcher should treat
// it (spec.md §4.1: Handled, Rejected, or Deferred).
type Handler func(ctx context.Context, evt domain.Event) Outcome

// Outcome is the dispatcher's verdict for a single event.
type Outcome string

const (
	Handled  Outcome = "Handled"
	Rejected Outcome = "Rejected"
	Deferred Outcome = "Deferred"
)

// Bus is the publish/subscribe contract the in-process MemoryBus satisfies.
// The Kafka adapter in internal/ingress/kafkabus has its own topic-addressed
// Publish and does not implement Bus.
type Bus interface {
	// Publish hands evt to the bus for eventual delivery to Subscribe'd
	// handlers of evt.Header.EventType.
	Publish(ctx context.Context, evt domain.Event) error

	// Subscribe registers handler for every event of the given type.
	// Multiple handlers for the same type all receive the event.
	Subscribe(eventType domain.EventType, handler Handler)
}

// MemoryBus is an in-process Bus. Publish dispatches synchronously to every
// subscribed handler in registration order; callers that need
// at-least-once delivery across a process restart should route through an
// Outbox instead of publishing directly.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
	log      zerolog.Logger
}

// NewMemoryBus returns a ready MemoryBus.
func NewMemoryBus(log zerolog.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[domain.EventType][]Handler),
		log:      log.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(eventType domain.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish implements Bus. It invokes every handler in turn and always
// returns nil; a handler's Rejected outcome is logged and does not stop
// delivery to the remaining handlers.
func (b *MemoryBus) Publish(ctx context.Context, evt domain.Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Header.EventType]...)
	b.mu.RUnlock()

	var firstOutcome Outcome
	for _, h := range handlers {
		outcome := h(ctx, evt)
		if firstOutcome == "" {
			firstOutcome = outcome
		}
		if outcome == Rejected {
			b.log.Warn().Str("eventId", evt.Header.EventID).Str("eventType", string(evt.Header.EventType)).Msg("event rejected by handler")
		}
	}
	return nil
}
