package position

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/store/memstore"
)

func newTestEngine() (*Engine, *memstore.MemStore) {
	ms := memstore.New()
	cal := clock.NewStaticCalendar()
	e := New(ms.Positions(), ms.Securities(), ms.IndexCompositions(), cal, zerolog.Nop())
	return e, ms
}

var businessDate = time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

func TestProcessTradeUpdatesContractualQtyAndLadder(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	evt := domain.Event{
		Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade, BusinessDate: businessDate},
		Trade: &domain.TradeEventPayload{
			SecurityID: "AAPL", BookID: "B1", Quantity: decimal.NewFromInt(100),
			SettlementDate: businessDate.AddDate(0, 0, 2), Side: "Buy",
		},
	}
	require.NoError(t, e.ProcessPositionEvent(ctx, evt))

	key := domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate}
	pos, err := e.GetPosition(ctx, key)
	require.NoError(t, err)
	assert.True(t, pos.ContractualQty.Equal(decimal.NewFromInt(100)))
	assert.True(t, pos.Receipt[2].Equal(decimal.NewFromInt(100)))
}

func TestProcessSellTradeAddsToDeliver(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	evt := domain.Event{
		Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade, BusinessDate: businessDate},
		Trade: &domain.TradeEventPayload{
			SecurityID: "AAPL", BookID: "B1", Quantity: decimal.NewFromInt(50),
			SettlementDate: businessDate.AddDate(0, 0, 1), Side: "Sell",
		},
	}
	require.NoError(t, e.ProcessPositionEvent(ctx, evt))

	key := domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate}
	pos, err := e.GetPosition(ctx, key)
	require.NoError(t, err)
	assert.True(t, pos.ContractualQty.Equal(decimal.NewFromInt(-50)))
	assert.True(t, pos.Deliver[1].Equal(decimal.NewFromInt(50)))
}

func TestApplyStartOfDayRejectedAfterIntradayActivity(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	key := domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate}

	evt := domain.Event{
		Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade, BusinessDate: businessDate},
		Trade: &domain.TradeEventPayload{
			SecurityID: "AAPL", BookID: "B1", Quantity: decimal.NewFromInt(10),
			SettlementDate: businessDate, Side: "Buy",
		},
	}
	require.NoError(t, e.ProcessPositionEvent(ctx, evt))

	err := e.ApplyStartOfDay(ctx, key, decimal.NewFromInt(1000))
	require.Error(t, err)
	assert.Equal(t, ierr.Permanent, ierr.Classify(err))
}

func TestApplyStartOfDaySucceedsOnFreshPosition(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	key := domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate}

	require.NoError(t, e.ApplyStartOfDay(ctx, key, decimal.NewFromInt(500)))

	pos, err := e.GetPosition(ctx, key)
	require.NoError(t, err)
	assert.True(t, pos.SettledQty.Equal(decimal.NewFromInt(500)))
	assert.True(t, pos.IsStartOfDay)
}

func TestExpandBasketTradeDistributesToConstituents(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()

	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "IDX1", IsBasketProduct: true, LotSize: decimal.NewFromInt(1)}))
	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "AAPL", LotSize: decimal.NewFromInt(1)}))
	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "MSFT", LotSize: decimal.NewFromInt(1)}))
	require.NoError(t, ms.IndexCompositions().Save(ctx, &domain.IndexComposition{
		ParentSecurityID: "IDX1",
		EffectiveDate:    businessDate.AddDate(0, 0, -1),
		Constituents: []domain.IndexConstituent{
			{ConstituentSecurityID: "AAPL", Weight: decimal.NewFromFloat(0.6)},
			{ConstituentSecurityID: "MSFT", Weight: decimal.NewFromFloat(0.4)},
		},
	}))

	evt := domain.Event{
		Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade, BusinessDate: businessDate},
		Trade: &domain.TradeEventPayload{
			SecurityID: "IDX1", BookID: "B1", Quantity: decimal.NewFromInt(100),
			SettlementDate: businessDate.AddDate(0, 0, 2), Side: "Buy", Expand: true,
		},
	}
	require.NoError(t, e.ProcessPositionEvent(ctx, evt))

	aapl, err := e.GetPosition(ctx, domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, aapl.ContractualQty.Equal(decimal.NewFromInt(60)))

	msft, err := e.GetPosition(ctx, domain.PositionKey{BookID: "B1", SecurityInternalID: "MSFT", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, msft.ContractualQty.Equal(decimal.NewFromInt(40)))
}

func TestBasketTradeWithoutExpandFlagBooksParentDirectly(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()

	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "IDX1", IsBasketProduct: true, LotSize: decimal.NewFromInt(1)}))
	require.NoError(t, ms.IndexCompositions().Save(ctx, &domain.IndexComposition{
		ParentSecurityID: "IDX1",
		EffectiveDate:    businessDate.AddDate(0, 0, -1),
		Constituents: []domain.IndexConstituent{
			{ConstituentSecurityID: "AAPL", Weight: decimal.NewFromFloat(0.6)},
		},
	}))

	evt := domain.Event{
		Header: domain.EventHeader{EventID: "e1", EventType: domain.EventTrade, BusinessDate: businessDate},
		Trade: &domain.TradeEventPayload{
			SecurityID: "IDX1", BookID: "B1", Quantity: decimal.NewFromInt(100),
			SettlementDate: businessDate.AddDate(0, 0, 2), Side: "Buy",
		},
	}
	require.NoError(t, e.ProcessPositionEvent(ctx, evt))

	parent, err := e.GetPosition(ctx, domain.PositionKey{BookID: "B1", SecurityInternalID: "IDX1", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, parent.ContractualQty.Equal(decimal.NewFromInt(100)), "an unflagged basket trade must book directly against the parent security")

	aapl, err := e.GetPosition(ctx, domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate})
	require.NoError(t, err)
	assert.True(t, aapl.ContractualQty.IsZero(), "an unflagged basket trade must not fan out to constituents")
}
