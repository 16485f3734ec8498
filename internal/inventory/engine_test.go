package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icache "github.com/primebrokerage/ims-core/internal/cache"
	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/ruleengine"
	"github.com/primebrokerage/ims-core/internal/store/memstore"
)

var businessDate = time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *memstore.MemStore) {
	ms := memstore.New()
	rules := ruleengine.New(ms.Rules(), zerolog.Nop())
	e := New(ms.Positions(), ms.Contracts(), ms.Securities(), ms.Inventory(), ms.ExternalAvailability(), rules, icache.New(time.Minute), zerolog.Nop())
	return e, ms
}

func seedPosition(t *testing.T, ms *memstore.MemStore, bookID, securityID string, qty decimal.Decimal) {
	t.Helper()
	key := domain.PositionKey{BookID: bookID, SecurityInternalID: securityID, BusinessDate: businessDate}
	pos := domain.NewPosition(key)
	pos.SettledQty = qty
	require.NoError(t, ms.Positions().Save(context.Background(), pos))
}

func TestCalculateForLoanSumsHypothecatablePositions(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(1000))
	seedPosition(t, ms, "B2", "AAPL", decimal.NewFromInt(500))

	rec, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.GrossQuantity.Equal(decimal.NewFromInt(1500)))
	// the temperature decrement is a locate reservation sizing, not a pool
	// reduction, so full gross is available here.
	assert.True(t, rec.AvailableQuantity.Equal(decimal.NewFromInt(1500)))
}

func TestCalculateForLoanExcludesNonHypothecatablePositions(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	key := domain.PositionKey{BookID: "B1", SecurityInternalID: "AAPL", BusinessDate: businessDate}
	pos := domain.NewPosition(key)
	pos.SettledQty = decimal.NewFromInt(1000)
	pos.IsHypothecatable = false
	require.NoError(t, ms.Positions().Save(ctx, pos))

	rec, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.GrossQuantity.IsZero())
}

func TestCalculateCachesResultAcrossCalls(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(100))

	rec1, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)

	seedPosition(t, ms, "B2", "AAPL", decimal.NewFromInt(9999))
	rec2, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)

	assert.True(t, rec1.GrossQuantity.Equal(rec2.GrossQuantity), "second call should be served from cache, not reflect the new position")
}

func TestOnPositionEventInvalidatesCache(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(100))

	_, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)

	seedPosition(t, ms, "B2", "AAPL", decimal.NewFromInt(9999))
	e.OnPositionEvent(ctx, "AAPL")

	rec, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.GrossQuantity.Equal(decimal.NewFromInt(10099)))
}

func TestIdentifyOverborrowConservativeFormula(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(100))
	require.NoError(t, ms.Contracts().Save(ctx, domain.Contract{
		ContractID: "c1", SecurityID: "AAPL", Quantity: decimal.NewFromInt(300),
		Provenance: domain.ProvenanceBorrowed, BusinessDate: businessDate, Status: "Active",
	}))

	rec, err := e.IdentifyOverborrow(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.DecrementQuantity.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "overborrow-detected", rec.AppliedRuleName)
}

func TestIdentifyOverborrowZeroWhenCovered(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(1000))
	require.NoError(t, ms.Contracts().Save(ctx, domain.Contract{
		ContractID: "c1", SecurityID: "AAPL", Quantity: decimal.NewFromInt(300),
		Provenance: domain.ProvenanceBorrowed, BusinessDate: businessDate, Status: "Active",
	}))

	rec, err := e.IdentifyOverborrow(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.DecrementQuantity.IsZero())
}

func TestDecrementPercentageTable(t *testing.T) {
	assert.True(t, decrementPercentage(domain.TemperatureHTB).Equal(decimal.NewFromInt(100)))
	assert.True(t, decrementPercentage(domain.TemperatureGC).Equal(decimal.NewFromInt(20)))
	assert.True(t, decrementPercentage(domain.TemperatureUnknown).Equal(decimal.NewFromInt(10)))
}

func TestCalculateLocateHTBDoesNotShaveAvailability(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(1000))
	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "AAPL", Temperature: domain.TemperatureHTB}))

	rec, err := e.CalculateLocate(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.AvailableQuantity.Equal(decimal.NewFromInt(1000)), "HTB temperature must not pre-shave the Locate pool; decrement sizing applies at reservation time")
}

func TestCalculateShortSellAddsExternalAvailability(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(500))
	require.NoError(t, ms.ExternalAvailability().Save(ctx, domain.ExternalAvailability{
		SecurityID: "AAPL", BusinessDate: businessDate, Quantity: decimal.NewFromInt(300), SourceName: "custodian1",
	}))

	rec, err := e.CalculateShortSell(ctx, "AAPL", "client1", "au1", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.AvailableQuantity.Equal(decimal.NewFromInt(800)))
}

func TestCalculateForLoanIgnoresExternalAvailability(t *testing.T) {
	e, ms := newTestEngine(t)
	ctx := context.Background()
	seedPosition(t, ms, "B1", "AAPL", decimal.NewFromInt(500))
	require.NoError(t, ms.ExternalAvailability().Save(ctx, domain.ExternalAvailability{
		SecurityID: "AAPL", BusinessDate: businessDate, Quantity: decimal.NewFromInt(300), SourceName: "custodian1",
	}))

	rec, err := e.CalculateForLoan(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, rec.AvailableQuantity.Equal(decimal.NewFromInt(500)), "external feeds are only added for Short-Sell and Locate")
}
