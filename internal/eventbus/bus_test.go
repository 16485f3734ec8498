package eventbus

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebrokerage/ims-core/internal/domain"
)

func TestMemoryBusDispatchesToSubscriber(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	var received domain.Event
	called := false
	bus.Subscribe(domain.EventTrade, func(ctx context.Context, evt domain.Event) Outcome {
		received = evt
		called = true
		return Handled
	})

	evt := domain.Event{Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade}}
	require.NoError(t, bus.Publish(context.Background(), evt))

	assert.True(t, called)
	assert.Equal(t, "e1", received.Header.EventID)
}

func TestMemoryBusInvokesAllHandlersEvenIfOneRejects(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	var calls int
	bus.Subscribe(domain.EventTrade, func(ctx context.Context, evt domain.Event) Outcome {
		calls++
		return Rejected
	})
	bus.Subscribe(domain.EventTrade, func(ctx context.Context, evt domain.Event) Outcome {
		calls++
		return Handled
	})

	evt := domain.Event{Header: domain.EventHeader{EventID: "e2", EventType: domain.EventTrade}}
	require.NoError(t, bus.Publish(context.Background(), evt))
	assert.Equal(t, 2, calls)
}

func TestMemoryBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	evt := domain.Event{Header: domain.EventHeader{EventID: "e3", EventType: domain.EventLocate}}
	require.NoError(t, bus.Publish(context.Background(), evt))
}
