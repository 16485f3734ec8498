// Package locate implements the Locate Workflow: submission with
// auto-approval, manual approval/rejection, cancellation, and a
// cron-driven expiry sweep over approved locates (spec.md §4.5).
package locate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/decimalx"
	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/idgen"
	"github.com/primebrokerage/ims-core/internal/inventory"
	"github.com/primebrokerage/ims-core/internal/lockset"
	"github.com/primebrokerage/ims-core/internal/ruleengine"
	"github.com/primebrokerage/ims-core/internal/store"
)

// Workflow owns domain.LocateRequest state, locking per requestID so
// concurrent commands against the same request serialize.
type Workflow struct {
	locates   store.LocateStore
	inventory *inventory.Engine
	rules     *ruleengine.Engine
	bus       eventbus.Bus
	clk       clock.Clock
	locks     *lockset.KeyedMutex
	log       zerolog.Logger
}

// New returns a ready Workflow.
func New(locates store.LocateStore, inv *inventory.Engine, rules *ruleengine.Engine, bus eventbus.Bus, clk clock.Clock, log zerolog.Logger) *Workflow {
	return &Workflow{
		locates:   locates,
		inventory: inv,
		rules:     rules,
		bus:       bus,
		clk:       clk,
		locks:     lockset.New(),
		log:       log.With().Str("component", "locate_workflow").Logger(),
	}
}

// SubmitRequest carries the caller-supplied fields of a new locate request.
type SubmitRequest struct {
	SecurityID        string
	RequestorID       string
	ClientID          string
	AggregationUnitID string
	RequestedQuantity decimal.Decimal
	LocateType        domain.LocateType
	SwapCashIndicator domain.SwapCashIndicator
	Market            string
	Temperature       domain.Temperature
	BusinessDate      time.Time
	ExpiryDate        time.Time
}

// Submit creates a LocateRequest and runs the auto-approval decision
// (spec.md §4.5 steps 1-4): evaluate the Locate rule-set, and on an
// Approved verdict, verify and reserve availability; on a Rejected
// verdict, record the rejection; otherwise leave the request Pending for
// manual review.
func (w *Workflow) Submit(ctx context.Context, in SubmitRequest) (*domain.LocateRequest, error) {
	req := &domain.LocateRequest{
		RequestID:         idgen.New(),
		SecurityID:        in.SecurityID,
		RequestorID:       in.RequestorID,
		ClientID:          in.ClientID,
		AggregationUnitID: in.AggregationUnitID,
		RequestedQuantity: in.RequestedQuantity,
		LocateType:        in.LocateType,
		SwapCashIndicator: in.SwapCashIndicator,
		State:             domain.LocatePending,
		ExpiryDate:        in.ExpiryDate,
		BusinessDate:      in.BusinessDate,
	}

	w.locks.Lock(req.RequestID)
	defer w.locks.Unlock(req.RequestID)

	ruleCtx := ruleengine.Context{
		"market":            in.Market,
		"client":            in.ClientID,
		"security":          in.SecurityID,
		"temperature":       string(in.Temperature),
		"swapCashIndicator": string(in.SwapCashIndicator),
		"requestedQuantity": in.RequestedQuantity,
	}
	dec := ruleengine.Evaluate(w.rules.RuleSet(), ruleCtx)

	switch dec.Status {
	case domain.CalculationValid:
		approved, err := w.tryAutoApprove(ctx, req, in.Temperature)
		if err != nil {
			return nil, err
		}
		if !approved {
			// Insufficient availability at submission time: fall through to
			// manual review rather than reject outright (spec.md §4.5 step
			// 4 default path).
			if err := w.locates.Save(ctx, req); err != nil {
				return nil, ierr.NewTransient("locate_workflow", "failed to save pending locate", err)
			}
		}
	case domain.CalculationError:
		req.State = domain.LocateRejected
		req.RejectionReason = "rejected by locate rule-set"
		req.StampOrTouch(w.clk.Now(), "locate_workflow")
		if err := w.locates.Save(ctx, req); err != nil {
			return nil, ierr.NewTransient("locate_workflow", "failed to save rejected locate", err)
		}
		w.publish(ctx, "Rejected", *req)
	default:
		req.StampOrTouch(w.clk.Now(), "locate_workflow")
		if err := w.locates.Save(ctx, req); err != nil {
			return nil, ierr.NewTransient("locate_workflow", "failed to save pending locate", err)
		}
	}
	return req, nil
}

// tryAutoApprove checks Locate availability and, if sufficient, reserves
// the decrement quantity and transitions req to Approved in place. It
// reports false (without error) when availability is insufficient, so the
// caller can leave the request Pending.
func (w *Workflow) tryAutoApprove(ctx context.Context, req *domain.LocateRequest, temp domain.Temperature) (bool, error) {
	avail, err := w.inventory.CalculateLocate(ctx, req.SecurityID, req.BusinessDate)
	if err != nil {
		return false, err
	}
	if avail.AvailableQuantity.LessThan(req.RequestedQuantity) {
		return false, nil
	}

	decrementQty := decimalx.Pct(req.RequestedQuantity, domain.DecrementPercentage(temp))
	if err := w.inventory.ReserveLocate(ctx, req.SecurityID, req.BusinessDate, decrementQty); err != nil {
		if ierr.Classify(err) == ierr.Conflict {
			return false, nil
		}
		return false, err
	}

	req.State = domain.LocateApproved
	req.ApprovedQuantity = req.RequestedQuantity
	req.DecrementQuantity = decrementQty
	req.StampOrTouch(w.clk.Now(), "locate_workflow")
	if err := w.locates.Save(ctx, req); err != nil {
		_ = w.inventory.ReleaseLocate(ctx, req.SecurityID, req.BusinessDate, decrementQty)
		return false, ierr.NewTransient("locate_workflow", "failed to save approved locate", err)
	}
	w.publish(ctx, "Approved", *req)
	return true, nil
}

// ManualApprove approves a Pending request without re-evaluating rules
// (spec.md §4.5 "Manual approval/rejection mirrors (2)/(3) but does not
// re-evaluate rules").
func (w *Workflow) ManualApprove(ctx context.Context, requestID string, approvedQty decimal.Decimal, temp domain.Temperature) (*domain.LocateRequest, error) {
	w.locks.Lock(requestID)
	defer w.locks.Unlock(requestID)

	req, err := w.locates.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(req.State, domain.LocateApproved) {
		return nil, ierr.NewValidation("locate_workflow", "request is not eligible for approval from its current state", nil)
	}
	if approvedQty.GreaterThan(req.RequestedQuantity) {
		return nil, ierr.NewValidation("locate_workflow", "approved quantity exceeds requested quantity", nil)
	}

	decrementQty := decimalx.Pct(approvedQty, domain.DecrementPercentage(temp))
	if err := w.inventory.ReserveLocate(ctx, req.SecurityID, req.BusinessDate, decrementQty); err != nil {
		return nil, err
	}

	req.State = domain.LocateApproved
	req.ApprovedQuantity = approvedQty
	req.DecrementQuantity = decrementQty
	req.StampOrTouch(w.clk.Now(), "locate_workflow")
	if err := w.locates.Save(ctx, req); err != nil {
		_ = w.inventory.ReleaseLocate(ctx, req.SecurityID, req.BusinessDate, decrementQty)
		return nil, ierr.NewTransient("locate_workflow", "failed to save approved locate", err)
	}
	w.publish(ctx, "Approved", *req)
	return req, nil
}

// ManualReject rejects a Pending request with the given reason.
func (w *Workflow) ManualReject(ctx context.Context, requestID, reason string) (*domain.LocateRequest, error) {
	w.locks.Lock(requestID)
	defer w.locks.Unlock(requestID)

	req, err := w.locates.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(req.State, domain.LocateRejected) {
		return nil, ierr.NewValidation("locate_workflow", "request is not eligible for rejection from its current state", nil)
	}
	req.State = domain.LocateRejected
	req.RejectionReason = reason
	req.StampOrTouch(w.clk.Now(), "locate_workflow")
	if err := w.locates.Save(ctx, req); err != nil {
		return nil, ierr.NewTransient("locate_workflow", "failed to save rejected locate", err)
	}
	w.publish(ctx, "Rejected", *req)
	return req, nil
}

// Cancel cancels a Pending request. Once a request has been Approved it is
// no longer cancellable per the state machine; it can only expire.
func (w *Workflow) Cancel(ctx context.Context, requestID, reason string) (*domain.LocateRequest, error) {
	w.locks.Lock(requestID)
	defer w.locks.Unlock(requestID)

	req, err := w.locates.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(req.State, domain.LocateCancelled) {
		return nil, ierr.NewValidation("locate_workflow", "request is not eligible for cancellation from its current state", nil)
	}
	req.State = domain.LocateCancelled
	req.RejectionReason = reason
	req.StampOrTouch(w.clk.Now(), "locate_workflow")
	if err := w.locates.Save(ctx, req); err != nil {
		return nil, ierr.NewTransient("locate_workflow", "failed to save cancelled locate", err)
	}
	return req, nil
}

// SweepExpired transitions every Approved request past its expiryDate as
// of asOf to Expired, releasing its residual reserved quantity back to
// Locate availability.
func (w *Workflow) SweepExpired(ctx context.Context, asOf time.Time) error {
	pending, err := w.locates.ListPendingExpiry(ctx, asOf)
	if err != nil {
		return ierr.NewTransient("locate_workflow", "failed to list expiring locates", err)
	}
	for _, req := range pending {
		if err := w.expireOne(ctx, req.RequestID); err != nil {
			w.log.Error().Err(err).Str("requestId", req.RequestID).Msg("failed to expire locate")
		}
	}
	return nil
}

func (w *Workflow) expireOne(ctx context.Context, requestID string) error {
	w.locks.Lock(requestID)
	defer w.locks.Unlock(requestID)

	req, err := w.locates.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !domain.CanTransitionTo(req.State, domain.LocateExpired) {
		return nil
	}
	if err := w.inventory.ReleaseLocate(ctx, req.SecurityID, req.BusinessDate, req.DecrementQuantity); err != nil {
		return err
	}
	req.State = domain.LocateExpired
	req.StampOrTouch(w.clk.Now(), "locate_workflow")
	return w.locates.Save(ctx, req)
}

func (w *Workflow) publish(ctx context.Context, command string, req domain.LocateRequest) {
	evt := domain.Event{
		Header: domain.EventHeader{
			EventID:       idgen.New(),
			EventType:     domain.EventLocate,
			EventSubType:  command,
			EffectiveTime: w.clk.Now(),
			BusinessDate:  req.BusinessDate,
			SourceSystem:  "locate_workflow",
		},
		Locate: &domain.LocateEventPayload{Command: command, Request: req},
	}
	if err := w.bus.Publish(ctx, evt); err != nil {
		w.log.Warn().Err(err).Str("requestId", req.RequestID).Msg("failed to publish locate event")
	}
}

// ExpirySweepJob adapts Workflow.SweepExpired to scheduler.Job for cron
// registration at the default 10-minute interval (spec.md §4.5).
type ExpirySweepJob struct {
	w *Workflow
}

// ExpirySweepJob returns a scheduler.Job that sweeps expired locates.
func (w *Workflow) ExpirySweepJob() *ExpirySweepJob {
	return &ExpirySweepJob{w: w}
}

func (j *ExpirySweepJob) Name() string { return "locate_expiry_sweep" }

func (j *ExpirySweepJob) Run() error {
	return j.w.SweepExpired(context.Background(), j.w.clk.Now())
}
