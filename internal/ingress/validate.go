package ingress

import (
	"fmt"
	"time"

	ierr "github.com/primebrokerage/ims-core/internal/errors"

	"github.com/primebrokerage/ims-core/internal/domain"
)

const businessDayWindow = 5

// Validate checks evt against spec.md §4.1's admission rules: non-null
// payload, a subtype-appropriate set of required fields, and a
// businessDate within ±5 business days of now. Dedup is checked
// separately by the Dispatcher since it needs the store round-trip.
func Validate(evt domain.Event, now time.Time) error {
	if evt.Header.EventID == "" {
		return ierr.NewValidation("ingress", "event missing eventId", nil)
	}
	if evt.Header.EventType == "" {
		return ierr.NewValidation("ingress", "event missing eventType", nil)
	}
	if evt.Header.BusinessDate.IsZero() {
		return ierr.NewValidation("ingress", "event missing businessDate", nil)
	}
	if !withinBusinessDayWindow(evt.Header.BusinessDate, now, businessDayWindow) {
		return ierr.NewValidation("ingress", fmt.Sprintf("businessDate %s outside +/- %d business day window", evt.Header.BusinessDate.Format("2006-01-02"), businessDayWindow), nil)
	}

	switch evt.Header.EventType {
	case domain.EventMarket:
		if evt.Market == nil {
			return ierr.NewValidation("ingress", "market event missing payload", nil)
		}
		if evt.Market.SecurityID == "" {
			return ierr.NewValidation("ingress", "market event missing securityId", nil)
		}
		if evt.Market.AsOf.IsZero() {
			return ierr.NewValidation("ingress", "market event missing effectiveTime", nil)
		}
	case domain.EventTrade:
		if evt.Trade == nil {
			return ierr.NewValidation("ingress", "trade event missing payload", nil)
		}
		if evt.Trade.SecurityID == "" || evt.Trade.BookID == "" {
			return ierr.NewValidation("ingress", "trade event missing securityId or bookId", nil)
		}
	case domain.EventContract:
		if evt.Contract == nil || evt.Contract.Contract.SecurityID == "" {
			return ierr.NewValidation("ingress", "contract event missing payload or securityId", nil)
		}
	case domain.EventPosition:
		if evt.Position == nil || evt.Position.Key.SecurityInternalID == "" {
			return ierr.NewValidation("ingress", "position event missing payload or securityId", nil)
		}
	case domain.EventInventory:
		if evt.Inventory == nil || evt.Inventory.External.SecurityID == "" {
			return ierr.NewValidation("ingress", "inventory event missing payload or securityId", nil)
		}
	case domain.EventLocate:
		if evt.Locate == nil || evt.Locate.Command == "" {
			return ierr.NewValidation("ingress", "locate event missing payload or command", nil)
		}
	case domain.EventWorkflow:
		if evt.Workflow == nil || evt.Workflow.Command == "" {
			return ierr.NewValidation("ingress", "workflow event missing payload or command", nil)
		}
	case domain.EventReference:
		if evt.Reference == nil {
			return ierr.NewValidation("ingress", "reference event missing payload", nil)
		}
	default:
		return ierr.NewValidation("ingress", fmt.Sprintf("unknown event type %q", evt.Header.EventType), nil)
	}
	return nil
}

// withinBusinessDayWindow reports whether businessDate falls within ±days
// business days of now, treating Saturday/Sunday as non-business days
// (spec.md §4.1, rule d). This is a calendar-agnostic sanity check, not the
// market-specific settlement calendar used elsewhere.
func withinBusinessDayWindow(businessDate, now time.Time, days int) bool {
	lo := addBusinessDays(now, -days)
	hi := addBusinessDays(now, days)
	bd := time.Date(businessDate.Year(), businessDate.Month(), businessDate.Day(), 0, 0, 0, 0, time.UTC)
	return !bd.Before(lo) && !bd.After(hi)
}

func addBusinessDays(from time.Time, n int) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n--
		}
	}
	return d
}
