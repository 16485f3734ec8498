// Package inventory implements the Inventory Engine: it derives
// per-security, per-scope availability from positions, contracts, and
// rule-engine decisions (spec.md §4.3).
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/primebrokerage/ims-core/internal/cache"
	"github.com/primebrokerage/ims-core/internal/decimalx"
	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/inventory/market"
	"github.com/primebrokerage/ims-core/internal/lockset"
	"github.com/primebrokerage/ims-core/internal/ruleengine"
	"github.com/primebrokerage/ims-core/internal/store"
)

// Engine computes InventoryAvailability records on demand, caching each
// key's result for cache.DefaultTTL and coalescing concurrent
// recomputations of the same key.
type Engine struct {
	positions  store.PositionStore
	contracts  store.ContractStore
	securities store.SecurityStore
	inventory  store.InventoryStore
	external   store.ExternalAvailabilityStore
	rules      *ruleengine.Engine
	cache      *cache.Cache
	locks      *lockset.KeyedMutex
	log        zerolog.Logger
}

// New returns a ready Engine.
func New(positions store.PositionStore, contracts store.ContractStore, securities store.SecurityStore, inv store.InventoryStore, external store.ExternalAvailabilityStore, rules *ruleengine.Engine, c *cache.Cache, log zerolog.Logger) *Engine {
	return &Engine{
		positions:  positions,
		contracts:  contracts,
		securities: securities,
		inventory:  inv,
		external:   external,
		rules:      rules,
		cache:      c,
		locks:      lockset.New(),
		log:        log.With().Str("component", "inventory_engine").Logger(),
	}
}

// sumExternalAvailability totals every source's latest feed for securityID on
// businessDate (spec.md §4.3 step 1: "For Short-Sell, external availability
// is added to internal availability"; the Locate pool is fed the same way).
func (e *Engine) sumExternalAvailability(ctx context.Context, securityID string, businessDate time.Time) (decimal.Decimal, error) {
	if e.external == nil {
		return decimal.Zero, nil
	}
	feeds, err := e.external.ListBySecurity(ctx, securityID, businessDate)
	if err != nil {
		return decimal.Zero, ierr.NewTransient("inventory_engine", "failed to load external availability", err)
	}
	total := decimal.Zero
	for _, f := range feeds {
		total = total.Add(f.Quantity)
	}
	return total, nil
}

func cacheKey(key domain.InventoryKey) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", key.SecurityID, key.CounterpartyID, key.AggregationUnitID, key.CalculationType, key.BusinessDate.Format("2006-01-02"))
}

// CalculateForLoan computes ForLoan availability for securityID.
func (e *Engine) CalculateForLoan(ctx context.Context, securityID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	return e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcForLoan, BusinessDate: businessDate})
}

// CalculateForPledge computes ForPledge availability for securityID.
func (e *Engine) CalculateForPledge(ctx context.Context, securityID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	return e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcForPledge, BusinessDate: businessDate})
}

// CalculateShortSell computes ShortSell availability scoped to a client
// and aggregation unit, the scope the short-sell validator reads.
func (e *Engine) CalculateShortSell(ctx context.Context, securityID, clientID, auID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	return e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CounterpartyID: clientID, AggregationUnitID: auID, CalculationType: domain.CalcShortSell, BusinessDate: businessDate})
}

// CalculateLongSell computes LongSell availability scoped to a client and
// aggregation unit.
func (e *Engine) CalculateLongSell(ctx context.Context, securityID, clientID, auID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	return e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CounterpartyID: clientID, AggregationUnitID: auID, CalculationType: domain.CalcLongSell, BusinessDate: businessDate})
}

// CalculateLocate computes Locate availability (the pool the locate
// workflow reserves against) for securityID.
func (e *Engine) CalculateLocate(ctx context.Context, securityID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	return e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcLocate, BusinessDate: businessDate})
}

// IdentifyOverborrow flags securities whose borrowed quantity exceeds what
// the current position supports, per spec.md §4.3's conservative formula:
// overborrow = borrowed - max(0, settled + forPledge).
func (e *Engine) IdentifyOverborrow(ctx context.Context, securityID string, businessDate time.Time) (*domain.InventoryAvailability, error) {
	rec, err := e.calculate(ctx, domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcOverborrow, BusinessDate: businessDate})
	if err != nil {
		return nil, err
	}

	contracts, err := e.contracts.ListBySecurity(ctx, securityID, businessDate)
	if err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to load contracts", err)
	}
	borrowed := sumByProvenance(contracts, domain.ProvenanceBorrowed)
	forPledge := sumByProvenance(contracts, domain.ProvenancePledged)

	settled := decimal.Zero
	positions, err := e.positions.ListBySecurity(ctx, securityID, businessDate)
	if err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to load positions", err)
	}
	for _, p := range positions {
		settled = settled.Add(p.ProjectedSettledQty())
	}

	capacity := decimalx.Max(decimal.Zero, settled.Add(forPledge))
	overborrow := borrowed.Sub(capacity)
	if overborrow.IsNegative() {
		overborrow = decimal.Zero
	}
	rec.DecrementQuantity = overborrow
	if overborrow.IsPositive() {
		rec.AppliedRuleName = "overborrow-detected"
	}
	rec.StampOrTouch(time.Now().UTC(), "inventory_engine")
	if err := e.inventory.Save(ctx, rec); err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to save overborrow record", err)
	}
	return rec, nil
}

func sumByProvenance(contracts []domain.Contract, p domain.PositionProvenance) decimal.Decimal {
	total := decimal.Zero
	for _, c := range contracts {
		if c.Provenance == p && c.Status == "Active" {
			total = total.Add(c.Quantity)
		}
	}
	return total
}

// calculate is the shared pipeline every Calculate* method runs: sum
// positions/contracts for the key's scope, run the rule engine, apply
// market-specific post-rules, clamp to the invariant, and cache the
// result under cache.DefaultTTL with single-flight recomputation.
func (e *Engine) calculate(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error) {
	ck := cacheKey(key)
	lk := ck
	e.locks.Lock(lk)
	defer e.locks.Unlock(lk)

	v, err := e.cache.Load(ctx, ck, func(ctx context.Context) (any, error) {
		return e.computeUncached(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	rec := v.(*domain.InventoryAvailability)
	cp := *rec
	return &cp, nil
}

func (e *Engine) computeUncached(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error) {
	positions, err := e.positions.ListBySecurity(ctx, key.SecurityID, key.BusinessDate)
	if err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to load positions", err)
	}
	contracts, err := e.contracts.ListBySecurity(ctx, key.SecurityID, key.BusinessDate)
	if err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to load contracts", err)
	}

	gross := decimal.Zero
	settled := decimal.Zero
	for _, p := range positions {
		if !p.IsHypothecatable || p.IsReserved {
			continue
		}
		gross = gross.Add(p.CurrentNetPosition())
		settled = settled.Add(p.ProjectedSettledQty())
	}
	forPledge := sumByProvenance(contracts, domain.ProvenancePledged)
	borrowed := sumByProvenance(contracts, domain.ProvenanceBorrowed)

	sec, err := e.securities.Get(ctx, key.SecurityID)
	if err != nil && err != store.ErrNotFound {
		return nil, ierr.NewTransient("inventory_engine", "failed to load security", err)
	}
	rec := &domain.InventoryAvailability{
		Key:           key,
		GrossQuantity: gross,
		NetQuantity:   gross,
		Status:        domain.CalculationPending,
	}
	if sec != nil {
		rec.Market = sec.Market
		rec.Temperature = sec.Temperature
	}

	ruleCtx := ruleengine.Context{
		"market":      rec.Market,
		"temperature": string(rec.Temperature),
		"securityId":  key.SecurityID,
		"calcType":    string(key.CalculationType),
		"gross":       gross,
	}
	dec := ruleengine.Evaluate(e.rules.RuleSet(), ruleCtx)

	available := gross
	if !dec.Include {
		available = decimal.Zero
	}
	if factor, ok := dec.ScaleFactors["available"]; ok {
		available = available.Mul(factor)
	}
	if dec.TemperatureSet {
		rec.Temperature = dec.Temperature
	}
	if dec.BorrowRateSet {
		rec.BorrowRate = dec.BorrowRate
	}
	rec.AppliedRuleName = dec.AppliedRuleName
	rec.AppliedRuleVersion = dec.AppliedRuleVersion

	if key.CalculationType == domain.CalcShortSell || key.CalculationType == domain.CalcLocate {
		external, err := e.sumExternalAvailability(ctx, key.SecurityID, key.BusinessDate)
		if err != nil {
			return nil, err
		}
		available = available.Add(external)
		rec.GrossQuantity = rec.GrossQuantity.Add(external)
		rec.NetQuantity = rec.NetQuantity.Add(external)
	}

	if postRule, ok := market.Registry[rec.Market]; ok {
		available = postRule(key.CalculationType, available, settled, forPledge, borrowed)
	}

	rec.AvailableQuantity = decimalx.Clamp(available, decimal.Zero, rec.GrossQuantity)
	if key.CalculationType == domain.CalcLocate {
		prev, err := e.inventory.Get(ctx, key)
		if err != nil && err != store.ErrNotFound {
			return nil, ierr.NewTransient("inventory_engine", "failed to load inventory record", err)
		}
		if prev != nil {
			rec.ReservedQuantity = prev.ReservedQuantity
			rec.AvailableQuantity = decimalx.Max(decimal.Zero, rec.AvailableQuantity.Sub(prev.ReservedQuantity))
		}
	}
	rec.Status = domain.CalculationValid
	rec.StampOrTouch(time.Now().UTC(), "inventory_engine")

	if err := e.inventory.Save(ctx, rec); err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to save inventory record", err)
	}
	return rec, nil
}

// decrementPercentage returns the locate/inventory decrement rate for a
// temperature (spec.md §9 Open Question, decided in favor of a fixed policy
// table shared with the locate workflow via domain.DecrementPercentage).
func decrementPercentage(t domain.Temperature) decimal.Decimal {
	return domain.DecrementPercentage(t)
}

// ReserveLocate atomically decrements Locate availability by qty and
// increments ReservedQuantity by the same amount, failing with a Conflict
// error if availability is insufficient at the time of reservation (spec.md
// §4.5 step 2: "atomically reserve that quantity against Inventory.Locate
// availability"). The key lock makes the check-then-mutate sequence atomic
// with respect to other reservations and recomputations of the same key.
func (e *Engine) ReserveLocate(ctx context.Context, securityID string, businessDate time.Time, qty decimal.Decimal) error {
	key := domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcLocate, BusinessDate: businessDate}
	ck := cacheKey(key)
	e.locks.Lock(ck)
	defer e.locks.Unlock(ck)

	rec, err := e.loadOrComputeLocked(ctx, key)
	if err != nil {
		return err
	}
	if rec.AvailableQuantity.LessThan(qty) {
		return ierr.NewConflict("inventory_engine", "insufficient locate availability for reservation", nil)
	}
	rec.AvailableQuantity = rec.AvailableQuantity.Sub(qty)
	rec.ReservedQuantity = rec.ReservedQuantity.Add(qty)
	rec.StampOrTouch(time.Now().UTC(), "inventory_engine")
	if err := e.inventory.Save(ctx, rec); err != nil {
		return ierr.NewTransient("inventory_engine", "failed to save locate reservation", err)
	}
	e.cache.Invalidate(ck)
	return nil
}

// ReleaseLocate reverses a prior ReserveLocate (full or partial), used by
// the locate workflow's expiry sweep to return residual reserved quantity
// to available supply.
func (e *Engine) ReleaseLocate(ctx context.Context, securityID string, businessDate time.Time, qty decimal.Decimal) error {
	key := domain.InventoryKey{SecurityID: securityID, CalculationType: domain.CalcLocate, BusinessDate: businessDate}
	ck := cacheKey(key)
	e.locks.Lock(ck)
	defer e.locks.Unlock(ck)

	rec, err := e.loadOrComputeLocked(ctx, key)
	if err != nil {
		return err
	}
	released := decimalx.Min(qty, rec.ReservedQuantity)
	rec.ReservedQuantity = rec.ReservedQuantity.Sub(released)
	rec.AvailableQuantity = rec.AvailableQuantity.Add(released)
	rec.StampOrTouch(time.Now().UTC(), "inventory_engine")
	if err := e.inventory.Save(ctx, rec); err != nil {
		return ierr.NewTransient("inventory_engine", "failed to save locate release", err)
	}
	e.cache.Invalidate(ck)
	return nil
}

// loadOrComputeLocked returns key's persisted record, computing it fresh if
// none exists yet. Callers must already hold the key's lock.
func (e *Engine) loadOrComputeLocked(ctx context.Context, key domain.InventoryKey) (*domain.InventoryAvailability, error) {
	rec, err := e.inventory.Get(ctx, key)
	if err == store.ErrNotFound {
		return e.computeUncached(ctx, key)
	}
	if err != nil {
		return nil, ierr.NewTransient("inventory_engine", "failed to load inventory record", err)
	}
	return rec, nil
}

// OnPositionEvent invalidates every cached calculation for a security when
// its position state changes, so the next read recomputes from fresh
// position data instead of serving a stale cached value.
func (e *Engine) OnPositionEvent(ctx context.Context, securityID string) {
	e.cache.InvalidatePrefix(securityID + "|")
}

// OnInventoryEvent applies an inbound external availability feed update:
// last value wins per source (spec.md §6), and the security's cached
// calculations are invalidated so the next read picks it up.
func (e *Engine) OnInventoryEvent(ctx context.Context, ext domain.ExternalAvailability) error {
	if err := e.external.Save(ctx, ext); err != nil {
		return ierr.NewTransient("inventory_engine", "failed to save external availability", err)
	}
	e.cache.InvalidatePrefix(ext.SecurityID + "|")
	return nil
}

// OnMarketData invalidates a security's cached calculations on a price/NAV
// update, since market-specific post-rules and rule-engine conditions may
// key off price-derived attributes not modeled elsewhere.
func (e *Engine) OnMarketData(ctx context.Context, securityID string, price decimal.Decimal, asOf time.Time) {
	e.cache.InvalidatePrefix(securityID + "|")
}

// OnContractEvent persists a lending/borrowing contract lifecycle change
// and invalidates the affected security's cached calculations.
func (e *Engine) OnContractEvent(ctx context.Context, c domain.Contract) error {
	if err := e.contracts.Save(ctx, c); err != nil {
		return ierr.NewTransient("inventory_engine", "failed to save contract", err)
	}
	e.cache.InvalidatePrefix(c.SecurityID + "|")
	return nil
}

// Snapshot returns every stored InventoryAvailability for securityID on
// businessDate, read straight from the store without consulting the cache.
func (e *Engine) Snapshot(ctx context.Context, securityID string, businessDate time.Time) ([]*domain.InventoryAvailability, error) {
	return e.inventory.ListBySecurity(ctx, securityID, businessDate)
}
