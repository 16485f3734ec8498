package shortsell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/store"
	"github.com/primebrokerage/ims-core/internal/store/memstore"
)

var businessDate = time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T) (*Validator, *memstore.MemStore) {
	ms := memstore.New()
	clk := clock.NewFrozenClock(businessDate)
	bus := eventbus.NewMemoryBus(zerolog.Nop())
	v := New(ms.ClientLimits(), ms.AULimits(), bus, clk, zerolog.Nop())
	return v, ms
}

func seedLimits(t *testing.T, ms *memstore.MemStore, clientID, auID, securityID string, shortLimit decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	ck := domain.LimitKey{ID: clientID, SecurityID: securityID, BusinessDate: businessDate}
	require.NoError(t, ms.ClientLimits().Save(ctx, &domain.ClientLimit{Key: ck, ShortSellLimit: shortLimit, LongSellLimit: shortLimit}))
	ak := domain.LimitKey{ID: auID, SecurityID: securityID, BusinessDate: businessDate}
	require.NoError(t, ms.AULimits().Save(ctx, &domain.AggregationUnitLimit{Key: ak, ShortSellLimit: shortLimit, LongSellLimit: shortLimit}))
}

func TestValidateApprovesWithinLimit(t *testing.T) {
	v, ms := newTestValidator(t)
	ctx := context.Background()
	seedLimits(t, ms, "C1", "AU1", "AAPL", decimal.NewFromInt(1000))

	order := domain.Order{OrderID: "o1", SecurityID: "AAPL", ClientID: "C1", AggregationUnitID: "AU1", OrderType: domain.OrderShortSell, Quantity: decimal.NewFromInt(100)}
	res, err := v.Validate(ctx, order, businessDate)
	require.NoError(t, err)
	assert.True(t, res.Approved)

	cl, err := ms.ClientLimits().Get(ctx, domain.LimitKey{ID: "C1", SecurityID: "AAPL", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, cl.ShortSellUsed.Equal(decimal.NewFromInt(100)))
}

func TestValidateRejectsWhenClientLimitExceeded(t *testing.T) {
	v, ms := newTestValidator(t)
	ctx := context.Background()
	seedLimits(t, ms, "C1", "AU1", "AAPL", decimal.NewFromInt(50))

	order := domain.Order{OrderID: "o1", SecurityID: "AAPL", ClientID: "C1", AggregationUnitID: "AU1", OrderType: domain.OrderShortSell, Quantity: decimal.NewFromInt(100)}
	res, err := v.Validate(ctx, order, businessDate)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, ReasonClientLimitExceeded, res.Reason)
}

func TestValidateRejectsWhenAULimitExceededButClientOK(t *testing.T) {
	v, ms := newTestValidator(t)
	ctx := context.Background()
	ctxBg := context.Background()
	ck := domain.LimitKey{ID: "C1", SecurityID: "AAPL", BusinessDate: businessDate}
	require.NoError(t, ms.ClientLimits().Save(ctxBg, &domain.ClientLimit{Key: ck, ShortSellLimit: decimal.NewFromInt(1000)}))
	ak := domain.LimitKey{ID: "AU1", SecurityID: "AAPL", BusinessDate: businessDate}
	require.NoError(t, ms.AULimits().Save(ctxBg, &domain.AggregationUnitLimit{Key: ak, ShortSellLimit: decimal.NewFromInt(50)}))

	order := domain.Order{OrderID: "o1", SecurityID: "AAPL", ClientID: "C1", AggregationUnitID: "AU1", OrderType: domain.OrderShortSell, Quantity: decimal.NewFromInt(100)}
	res, err := v.Validate(ctx, order, businessDate)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, ReasonAULimitExceeded, res.Reason)
}

// slowClientLimitStore wraps a store.ClientLimitStore and sleeps before
// every Get, honoring ctx cancellation, to simulate a degraded dependency
// for the validation-budget timeout scenario.
type slowClientLimitStore struct {
	store.ClientLimitStore
	delay time.Duration
}

func (s slowClientLimitStore) Get(ctx context.Context, key domain.LimitKey) (*domain.ClientLimit, error) {
	select {
	case <-time.After(s.delay):
		return s.ClientLimitStore.Get(ctx, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestValidateTimesOutWithoutMutatingStateOnSlowStore(t *testing.T) {
	ms := memstore.New()
	clk := clock.NewFrozenClock(businessDate)
	bus := eventbus.NewMemoryBus(zerolog.Nop())
	seedLimits(t, ms, "C1", "AU1", "AAPL", decimal.NewFromInt(1000))

	slow := slowClientLimitStore{ClientLimitStore: ms.ClientLimits(), delay: 200 * time.Millisecond}
	v := New(slow, ms.AULimits(), bus, clk, zerolog.Nop())

	order := domain.Order{OrderID: "o1", SecurityID: "AAPL", ClientID: "C1", AggregationUnitID: "AU1", OrderType: domain.OrderShortSell, Quantity: decimal.NewFromInt(100)}

	started := time.Now()
	res, err := v.Validate(context.Background(), order, businessDate)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.LessOrEqual(t, elapsed.Milliseconds(), int64(ValidationBudget/time.Millisecond)+50, "timeout rejection should return at the budget, not wait out the slow store")

	cl, err := ms.ClientLimits().Get(context.Background(), domain.LimitKey{ID: "C1", SecurityID: "AAPL", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, cl.ShortSellUsed.IsZero(), "a timed-out validation must not mutate client limit state")
}

func TestValidateConcurrentOrdersDoNotOverdrawLimit(t *testing.T) {
	v, ms := newTestValidator(t)
	ctx := context.Background()
	seedLimits(t, ms, "C1", "AU1", "AAPL", decimal.NewFromInt(100))

	var wg sync.WaitGroup
	results := make([]Result, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := domain.Order{OrderID: "o", SecurityID: "AAPL", ClientID: "C1", AggregationUnitID: "AU1", OrderType: domain.OrderShortSell, Quantity: decimal.NewFromInt(60)}
			res, err := v.Validate(ctx, order, businessDate)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	approvedCount := 0
	for _, r := range results {
		if r.Approved {
			approvedCount++
		}
	}
	assert.Equal(t, 1, approvedCount, "only one of three 60-unit orders should fit within a 100-unit limit")

	cl, err := ms.ClientLimits().Get(ctx, domain.LimitKey{ID: "C1", SecurityID: "AAPL", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, cl.ShortSellUsed.LessThanOrEqual(decimal.NewFromInt(100)))
}
