package ingress

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/inventory"
	"github.com/primebrokerage/ims-core/internal/locate"
	"github.com/primebrokerage/ims-core/internal/position"
)

// Engines collects the dispatch targets spec.md §4.1's dispatch table
// routes events to.
type Engines struct {
	Position  *position.Engine
	Inventory *inventory.Engine
	Locate    *locate.Workflow
}

// RegisterRoutes wires d's dispatch table: Market events fan out to both
// the position and inventory engines, Trade/StartOfDay/PositionUpdate
// events go to the position engine (and, for position updates, the
// inventory engine too), Contract events go to the inventory engine, and
// Locate commands go to the locate workflow.
func RegisterRoutes(d *Dispatcher, e Engines) {
	d.RegisterHandler(domain.EventMarket, func(ctx context.Context, evt domain.Event) error {
		e.Position.OnMarketData(ctx, evt.Market.SecurityID, evt.Market.Price.Amount, evt.Market.AsOf)
		e.Inventory.OnMarketData(ctx, evt.Market.SecurityID, evt.Market.Price.Amount, evt.Market.AsOf)
		return nil
	})

	d.RegisterHandler(domain.EventTrade, func(ctx context.Context, evt domain.Event) error {
		return e.Position.ProcessPositionEvent(ctx, evt)
	})

	d.RegisterHandler(domain.EventPosition, func(ctx context.Context, evt domain.Event) error {
		if err := e.Position.ProcessPositionEvent(ctx, evt); err != nil {
			return err
		}
		e.Inventory.OnPositionEvent(ctx, evt.Position.Key.SecurityInternalID)
		return nil
	})

	d.RegisterHandler(domain.EventContract, func(ctx context.Context, evt domain.Event) error {
		return e.Inventory.OnContractEvent(ctx, evt.Contract.Contract)
	})

	d.RegisterHandler(domain.EventWorkflow, func(ctx context.Context, evt domain.Event) error {
		if evt.Workflow.Command != "StartOfDay" {
			return nil
		}
		bookID := evt.Workflow.Params["bookId"]
		securityID := evt.Workflow.Params["securityId"]
		key := domain.PositionKey{BookID: bookID, SecurityInternalID: securityID, BusinessDate: evt.Header.BusinessDate}
		sodQty, err := decimalFromParam(evt.Workflow.Params, "sodQty")
		if err != nil {
			return ierr.NewValidation("ingress", "StartOfDay command missing or malformed sodQty", err)
		}
		return e.Position.ApplyStartOfDay(ctx, key, sodQty)
	})

	d.RegisterHandler(domain.EventLocate, func(ctx context.Context, evt domain.Event) error {
		return dispatchLocateCommand(ctx, e.Locate, *evt.Locate)
	})
}

func dispatchLocateCommand(ctx context.Context, w *locate.Workflow, payload domain.LocateEventPayload) error {
	req := payload.Request
	switch payload.Command {
	case "Submit":
		_, err := w.Submit(ctx, locate.SubmitRequest{
			SecurityID:        req.SecurityID,
			RequestorID:       req.RequestorID,
			ClientID:          req.ClientID,
			AggregationUnitID: req.AggregationUnitID,
			RequestedQuantity: req.RequestedQuantity,
			LocateType:        req.LocateType,
			SwapCashIndicator: req.SwapCashIndicator,
			Temperature:       domain.TemperatureGC,
			BusinessDate:      req.BusinessDate,
			ExpiryDate:        req.ExpiryDate,
		})
		return err
	case "Approve":
		_, err := w.ManualApprove(ctx, req.RequestID, req.ApprovedQuantity, domain.TemperatureGC)
		return err
	case "Reject":
		_, err := w.ManualReject(ctx, req.RequestID, req.RejectionReason)
		return err
	case "Cancel":
		_, err := w.Cancel(ctx, req.RequestID, req.RejectionReason)
		return err
	default:
		return ierr.NewValidation("ingress", fmt.Sprintf("unknown locate command %q", payload.Command), nil)
	}
}

func decimalFromParam(params map[string]string, key string) (domain.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return domain.Decimal{}, fmt.Errorf("missing parameter %q", key)
	}
	return decimal.NewFromString(raw)
}
