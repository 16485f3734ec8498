// Package shortsell implements the Short-Sell Validator: the hot-path
// order check that must complete end-to-end within a 150ms p99 budget
// (spec.md §4.6).
package shortsell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	icache "github.com/primebrokerage/ims-core/internal/cache"
	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/idgen"
	"github.com/primebrokerage/ims-core/internal/lockset"
	"github.com/primebrokerage/ims-core/internal/metrics"
	"github.com/primebrokerage/ims-core/internal/store"
)

// RejectionReason names why Validate rejected an order.
type RejectionReason string

const (
	ReasonClientLimitExceeded RejectionReason = "ClientLimitExceeded"
	ReasonAULimitExceeded     RejectionReason = "AULimitExceeded"
	ReasonTimeout             RejectionReason = "Timeout"
)

// ValidationBudget is the p99 processing budget spec.md §4.6/§5 mandates for
// Validate end-to-end. An order still in flight past this deadline is
// rejected with ReasonTimeout rather than left to run unbounded.
const ValidationBudget = 150 * time.Millisecond

// Result is Validate's outcome.
type Result struct {
	Approved bool
	Reason   RejectionReason
	OrderID  string
}

// Validator checks and atomically updates client/AU usage counters against
// their configured limits. Warm reads go through a TTL cache; misses fall
// back to the store.
type Validator struct {
	clientLimits store.ClientLimitStore
	auLimits     store.AggregationUnitLimitStore
	bus          eventbus.Bus
	clk          clock.Clock
	locks        *lockset.KeyedMutex
	cache        *icache.Cache
	metrics      *metrics.Metrics
	log          zerolog.Logger

	quarantineMu sync.RWMutex
	quarantined  map[string]bool
}

// WithMetrics attaches m so Validate records the approved/rejected counts
// and the 150ms-budget latency histogram spec.md §6 names. A nil m
// disables recording.
func (v *Validator) WithMetrics(m *metrics.Metrics) *Validator {
	v.metrics = m
	return v
}

// New returns a ready Validator.
func New(clientLimits store.ClientLimitStore, auLimits store.AggregationUnitLimitStore, bus eventbus.Bus, clk clock.Clock, log zerolog.Logger) *Validator {
	return &Validator{
		clientLimits: clientLimits,
		auLimits:     auLimits,
		bus:          bus,
		clk:          clk,
		locks:        lockset.New(),
		cache:        icache.New(icache.DefaultTTL),
		log:          log.With().Str("component", "shortsell_validator").Logger(),
		quarantined:  make(map[string]bool),
	}
}

func clientKey(order domain.Order, businessDate time.Time) string {
	return fmt.Sprintf("client|%s|%s|%s", order.ClientID, order.SecurityID, businessDate.Format("2006-01-02"))
}

func auKey(order domain.Order, businessDate time.Time) string {
	return fmt.Sprintf("au|%s|%s|%s", order.AggregationUnitID, order.SecurityID, businessDate.Format("2006-01-02"))
}

// Validate runs the four-step algorithm spec.md §4.6 defines: load limits
// (warm cache, store fallback), compute remaining, reject if either side
// is short, else lock both keys in canonical order and commit the
// increment atomically. The whole pipeline runs under ValidationBudget; an
// order still unresolved at the deadline is rejected with ReasonTimeout
// without mutating client/AU state (spec.md §4.6 failure model).
func (v *Validator) Validate(ctx context.Context, order domain.Order, businessDate time.Time) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, ValidationBudget)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := v.validate(ctx, order, businessDate)
		done <- outcome{res: res, err: err}
	}()

	var res Result
	var err error
	select {
	case o := <-done:
		res, err = o.res, o.err
	case <-ctx.Done():
		res, err = Result{OrderID: order.OrderID, Approved: false, Reason: ReasonTimeout}, nil
	}

	if v.metrics != nil {
		v.metrics.ObserveValidationLatency(time.Since(start))
		if err == nil {
			v.metrics.RecordValidation(res.Approved, string(res.Reason))
		}
	}
	return res, err
}

func (v *Validator) validate(ctx context.Context, order domain.Order, businessDate time.Time) (Result, error) {
	ck := clientKey(order, businessDate)
	ak := auKey(order, businessDate)

	if ctx.Err() != nil {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonTimeout}, nil
	}

	v.quarantineMu.RLock()
	quarantined := v.quarantined[ck] || v.quarantined[ak]
	v.quarantineMu.RUnlock()
	if quarantined {
		return Result{}, ierr.NewQuarantine("shortsell_validator", "limit key is quarantined pending operator clearance", nil)
	}

	clientLimit, err := v.loadClientLimit(ctx, order, businessDate)
	if err != nil {
		return v.timeoutOr(ctx, order, err)
	}
	auLimit, err := v.loadAULimit(ctx, order, businessDate)
	if err != nil {
		return v.timeoutOr(ctx, order, err)
	}

	if clientLimit.Remaining(order.OrderType).LessThan(order.Quantity) {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonClientLimitExceeded}, nil
	}
	if auLimit.Remaining(order.OrderType).LessThan(order.Quantity) {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonAULimitExceeded}, nil
	}

	release := v.locks.LockMulti(ck, ak)
	defer release()

	if ctx.Err() != nil {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonTimeout}, nil
	}

	// Re-check under lock: another validator may have consumed capacity
	// between the optimistic read above and acquiring the lock.
	clientLimit, err = v.loadClientLimit(ctx, order, businessDate)
	if err != nil {
		return v.timeoutOr(ctx, order, err)
	}
	auLimit, err = v.loadAULimit(ctx, order, businessDate)
	if err != nil {
		return v.timeoutOr(ctx, order, err)
	}
	if clientLimit.Remaining(order.OrderType).LessThan(order.Quantity) {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonClientLimitExceeded}, nil
	}
	if auLimit.Remaining(order.OrderType).LessThan(order.Quantity) {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonAULimitExceeded}, nil
	}

	if ctx.Err() != nil {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonTimeout}, nil
	}

	origClient := *clientLimit
	origAU := *auLimit
	applyUsage(clientLimit, order.OrderType, order.Quantity)
	applyUsage(auLimit, order.OrderType, order.Quantity)
	clientLimit.StampOrTouch(v.clk.Now(), "shortsell_validator")
	auLimit.StampOrTouch(v.clk.Now(), "shortsell_validator")

	if err := v.clientLimits.Save(ctx, clientLimit); err != nil {
		return Result{}, v.rollback(ctx, ck, ak, &origClient, &origAU, ierr.NewTransient("shortsell_validator", "failed to save client limit", err))
	}
	if err := v.auLimits.Save(ctx, auLimit); err != nil {
		rollbackErr := v.rollbackAU(ctx, ak, &origAU)
		_ = v.rollbackClient(ctx, ck, &origClient)
		if rollbackErr != nil {
			return Result{}, rollbackErr
		}
		return Result{}, ierr.NewTransient("shortsell_validator", "failed to save au limit", err)
	}

	v.cache.Invalidate(ck)
	v.cache.Invalidate(ak)

	v.publishValidated(ctx, order, businessDate)
	return Result{OrderID: order.OrderID, Approved: true}, nil
}

// timeoutOr folds a load failure caused by the validation deadline expiring
// into a clean ReasonTimeout rejection instead of surfacing the underlying
// context-cancellation error, so a slow dependency always resolves to the
// same Timeout outcome regardless of which goroutine observes it first.
func (v *Validator) timeoutOr(ctx context.Context, order domain.Order, err error) (Result, error) {
	if ctx.Err() != nil {
		return Result{OrderID: order.OrderID, Approved: false, Reason: ReasonTimeout}, nil
	}
	return Result{}, err
}

func applyUsage(limit interface{}, orderType domain.OrderType, qty decimal.Decimal) {
	switch l := limit.(type) {
	case *domain.ClientLimit:
		if orderType == domain.OrderLongSell {
			l.LongSellUsed = l.LongSellUsed.Add(qty)
		} else {
			l.ShortSellUsed = l.ShortSellUsed.Add(qty)
		}
	case *domain.AggregationUnitLimit:
		if orderType == domain.OrderLongSell {
			l.LongSellUsed = l.LongSellUsed.Add(qty)
		} else {
			l.ShortSellUsed = l.ShortSellUsed.Add(qty)
		}
	}
}

// rollback reverses both counters in reverse order (AU before client,
// mirroring the save order), marking the relevant key(s) Quarantine and
// raising a critical alert if a reversal itself fails (spec.md §4.6
// failure model).
func (v *Validator) rollback(ctx context.Context, ck, ak string, origClient *domain.ClientLimit, origAU *domain.AggregationUnitLimit, cause error) error {
	if err := v.rollbackAU(ctx, ak, origAU); err != nil {
		return err
	}
	if err := v.rollbackClient(ctx, ck, origClient); err != nil {
		return err
	}
	return cause
}

func (v *Validator) rollbackClient(ctx context.Context, ck string, orig *domain.ClientLimit) error {
	if err := v.clientLimits.Save(ctx, orig); err != nil {
		v.quarantineMu.Lock()
		v.quarantined[ck] = true
		v.quarantineMu.Unlock()
		v.log.Error().Err(err).Str("key", ck).Msg("CRITICAL: client limit rollback failed, key quarantined")
		return ierr.NewQuarantine("shortsell_validator", "client limit rollback failed", err)
	}
	return nil
}

func (v *Validator) rollbackAU(ctx context.Context, ak string, orig *domain.AggregationUnitLimit) error {
	if err := v.auLimits.Save(ctx, orig); err != nil {
		v.quarantineMu.Lock()
		v.quarantined[ak] = true
		v.quarantineMu.Unlock()
		v.log.Error().Err(err).Str("key", ak).Msg("CRITICAL: au limit rollback failed, key quarantined")
		return ierr.NewQuarantine("shortsell_validator", "au limit rollback failed", err)
	}
	return nil
}

func (v *Validator) loadClientLimit(ctx context.Context, order domain.Order, businessDate time.Time) (*domain.ClientLimit, error) {
	ck := clientKey(order, businessDate)
	val, err := v.cache.Load(ctx, ck, func(ctx context.Context) (any, error) {
		key := domain.LimitKey{ID: order.ClientID, SecurityID: order.SecurityID, BusinessDate: businessDate}
		limit, err := v.clientLimits.Get(ctx, key)
		if err != nil {
			return nil, ierr.NewTransient("shortsell_validator", "failed to load client limit", err)
		}
		return limit, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *val.(*domain.ClientLimit)
	return &cp, nil
}

func (v *Validator) loadAULimit(ctx context.Context, order domain.Order, businessDate time.Time) (*domain.AggregationUnitLimit, error) {
	ak := auKey(order, businessDate)
	val, err := v.cache.Load(ctx, ak, func(ctx context.Context) (any, error) {
		key := domain.LimitKey{ID: order.AggregationUnitID, SecurityID: order.SecurityID, BusinessDate: businessDate}
		limit, err := v.auLimits.Get(ctx, key)
		if err != nil {
			return nil, ierr.NewTransient("shortsell_validator", "failed to load au limit", err)
		}
		return limit, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *val.(*domain.AggregationUnitLimit)
	return &cp, nil
}

func (v *Validator) publishValidated(ctx context.Context, order domain.Order, businessDate time.Time) {
	evt := domain.Event{
		Header: domain.EventHeader{
			EventID:       idgen.New(),
			EventType:     domain.EventWorkflow,
			EventSubType:  "OrderValidated",
			EffectiveTime: v.clk.Now(),
			BusinessDate:  businessDate,
			SourceSystem:  "shortsell_validator",
		},
		Workflow: &domain.WorkflowEventPayload{
			Command: "OrderValidated",
			Params: map[string]string{
				"orderId":    order.OrderID,
				"securityId": order.SecurityID,
				"clientId":   order.ClientID,
			},
		},
	}
	if err := v.bus.Publish(ctx, evt); err != nil {
		v.log.Warn().Err(err).Str("orderId", order.OrderID).Msg("failed to publish order validated event")
	}
}
