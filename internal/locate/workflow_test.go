package locate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icache "github.com/primebrokerage/ims-core/internal/cache"
	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/domain"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/inventory"
	"github.com/primebrokerage/ims-core/internal/ruleengine"
	"github.com/primebrokerage/ims-core/internal/store/memstore"
)

var businessDate = time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

func newTestWorkflow(t *testing.T) (*Workflow, *memstore.MemStore, *clock.FrozenClock) {
	ms := memstore.New()
	rules := ruleengine.New(ms.Rules(), zerolog.Nop())
	invEngine := inventory.New(ms.Positions(), ms.Contracts(), ms.Securities(), ms.Inventory(), ms.ExternalAvailability(), rules, icache.New(time.Minute), zerolog.Nop())
	clk := clock.NewFrozenClock(businessDate)
	bus := eventbus.NewMemoryBus(zerolog.Nop())
	w := New(ms.Locates(), invEngine, rules, bus, clk, zerolog.Nop())
	return w, ms, clk
}

func seedPosition(t *testing.T, ms *memstore.MemStore, securityID string, qty decimal.Decimal) {
	t.Helper()
	key := domain.PositionKey{BookID: "B1", SecurityInternalID: securityID, BusinessDate: businessDate}
	pos := domain.NewPosition(key)
	pos.SettledQty = qty
	require.NoError(t, ms.Positions().Save(context.Background(), pos))
}

func TestSubmitWithNoMatchingRuleRemainsPending(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureGC, BusinessDate: businessDate,
		ExpiryDate: businessDate.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LocatePending, req.State)
}

func TestSubmitApprovedRuleReservesDecrementAndApproves(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))
	require.NoError(t, ms.Rules().Save(ctx, &domain.CalculationRule{
		Name: "auto-approve-gc", Version: 1, RuleType: domain.CalcLocate, Status: domain.RuleActive,
		EffectiveDate: businessDate.AddDate(0, 0, -1),
		Actions: []domain.Action{{Kind: domain.ActionSetStatus, StatusValue: domain.CalculationValid}},
	}))
	require.NoError(t, w.rules.Reload(ctx, domain.CalcLocate, ""))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureGC, BusinessDate: businessDate,
		ExpiryDate: businessDate.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LocateApproved, req.State)
	assert.True(t, req.ApprovedQuantity.Equal(decimal.NewFromInt(100)))
	// GC decrement is 20%
	assert.True(t, req.DecrementQuantity.Equal(decimal.NewFromInt(20)))
}

func TestSubmitHTBAutoApprovesAndReservesFullDecrement(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))
	require.NoError(t, ms.Securities().Save(ctx, &domain.Security{InternalID: "AAPL", Temperature: domain.TemperatureHTB}))
	require.NoError(t, ms.Rules().Save(ctx, &domain.CalculationRule{
		Name: "auto-approve-htb", Version: 1, RuleType: domain.CalcLocate, Status: domain.RuleActive,
		EffectiveDate: businessDate.AddDate(0, 0, -1),
		Actions: []domain.Action{{Kind: domain.ActionSetStatus, StatusValue: domain.CalculationValid}},
	}))
	require.NoError(t, w.rules.Reload(ctx, domain.CalcLocate, ""))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(500),
		Temperature: domain.TemperatureHTB, BusinessDate: businessDate,
		ExpiryDate: businessDate.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LocateApproved, req.State, "HTB pool must not be pre-shaved to zero before reservation")
	assert.True(t, req.ApprovedQuantity.Equal(decimal.NewFromInt(500)))
	// HTB decrement is 100%: the full requested quantity is reserved.
	assert.True(t, req.DecrementQuantity.Equal(decimal.NewFromInt(500)))
}

func TestSubmitRejectedRuleRecordsRejection(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))
	require.NoError(t, ms.Rules().Save(ctx, &domain.CalculationRule{
		Name: "reject-all", Version: 1, RuleType: domain.CalcLocate, Status: domain.RuleActive,
		EffectiveDate: businessDate.AddDate(0, 0, -1),
		Actions: []domain.Action{{Kind: domain.ActionSetStatus, StatusValue: domain.CalculationError}},
	}))
	require.NoError(t, w.rules.Reload(ctx, domain.CalcLocate, ""))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureGC, BusinessDate: businessDate,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LocateRejected, req.State)
	assert.NotEmpty(t, req.RejectionReason)
}

func TestManualApproveThenCannotCancel(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureHTB, BusinessDate: businessDate,
		ExpiryDate: businessDate.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, domain.LocatePending, req.State)

	approved, err := w.ManualApprove(ctx, req.RequestID, decimal.NewFromInt(80), domain.TemperatureHTB)
	require.NoError(t, err)
	assert.Equal(t, domain.LocateApproved, approved.State)
	assert.True(t, approved.DecrementQuantity.Equal(decimal.NewFromInt(80))) // HTB: full decrement

	_, err = w.Cancel(ctx, req.RequestID, "changed my mind")
	assert.Error(t, err)
}

func TestManualRejectPendingRequest(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureGC, BusinessDate: businessDate,
	})
	require.NoError(t, err)

	rejected, err := w.ManualReject(ctx, req.RequestID, "client ineligible")
	require.NoError(t, err)
	assert.Equal(t, domain.LocateRejected, rejected.State)
	assert.Equal(t, "client ineligible", rejected.RejectionReason)
}

func TestCancelPendingRequest(t *testing.T) {
	w, ms, _ := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureGC, BusinessDate: businessDate,
	})
	require.NoError(t, err)

	cancelled, err := w.Cancel(ctx, req.RequestID, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, domain.LocateCancelled, cancelled.State)
}

func TestSweepExpiredReleasesReservationAndTransitions(t *testing.T) {
	w, ms, clk := newTestWorkflow(t)
	ctx := context.Background()
	seedPosition(t, ms, "AAPL", decimal.NewFromInt(1000))

	req, err := w.Submit(ctx, SubmitRequest{
		SecurityID: "AAPL", ClientID: "C1", RequestedQuantity: decimal.NewFromInt(100),
		Temperature: domain.TemperatureHTB, BusinessDate: businessDate,
		ExpiryDate: businessDate.Add(time.Hour),
	})
	require.NoError(t, err)
	approved, err := w.ManualApprove(ctx, req.RequestID, decimal.NewFromInt(100), domain.TemperatureHTB)
	require.NoError(t, err)
	require.Equal(t, domain.LocateApproved, approved.State)

	beforeSweep, err := w.inventory.CalculateLocate(ctx, "AAPL", businessDate)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	require.NoError(t, w.SweepExpired(ctx, clk.Now()))

	expired, err := ms.Locates().Get(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.LocateExpired, expired.State)

	afterSweep, err := w.inventory.CalculateLocate(ctx, "AAPL", businessDate)
	require.NoError(t, err)
	assert.True(t, afterSweep.AvailableQuantity.GreaterThan(beforeSweep.AvailableQuantity))
}
