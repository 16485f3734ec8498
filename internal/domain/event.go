package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the top-level tag of an Event's payload variant.
type EventType string

const (
	EventReference EventType = "Reference"
	EventMarket    EventType = "Market"
	EventTrade     EventType = "Trade"
	EventContract  EventType = "Contract"
	EventPosition  EventType = "Position"
	EventInventory EventType = "Inventory"
	EventLocate    EventType = "Locate"
	EventWorkflow  EventType = "Workflow"
)

// EventHeader carries the fields common to every inbound event, regardless
// of variant (spec.md §4.1).
type EventHeader struct {
	EventID        string
	EventType      EventType
	EventSubType   string
	EffectiveTime  time.Time
	BusinessDate   time.Time
	SourceSystem   string
	ProducerOffset int64 // optional; zero if the source doesn't provide one
}

// TradeEventPayload carries a trade booking/amendment/cancellation.
type TradeEventPayload struct {
	TradeID        string
	SecurityID     string
	BookID         string
	Quantity       decimal.Decimal
	SettlementDate time.Time
	Side           string // Buy, Sell
	// Expand flags a basket-product trade for constituent expansion
	// (spec.md §4.2 step 1). A basket trade without this flag is booked
	// directly against the parent security instead.
	Expand bool
}

// ContractEventPayload carries a lending/borrowing contract lifecycle event.
type ContractEventPayload struct {
	Contract Contract
}

// PositionEventPayload carries a direct position adjustment (e.g. a
// corporate action booking) not expressed as a trade.
type PositionEventPayload struct {
	Key   PositionKey
	Delta decimal.Decimal
}

// InventoryEventPayload carries an external availability feed update.
type InventoryEventPayload struct {
	External ExternalAvailability
}

// LocateEventPayload carries a locate workflow command (submit, approve,
// reject, cancel).
type LocateEventPayload struct {
	Command string // Submit, Approve, Reject, Cancel
	Request LocateRequest
}

// WorkflowEventPayload carries a generic operational command (e.g. start of
// day, rebuild, rule reload) that isn't itself a domain mutation.
type WorkflowEventPayload struct {
	Command string
	Params  map[string]string
}

// ReferenceEventPayload carries a reference-data change: security,
// counterparty, aggregation unit, or index composition.
type ReferenceEventPayload struct {
	Security            *Security
	Counterparty         *Counterparty
	AggregationUnit      *AggregationUnit
	IndexComposition     *IndexComposition
}

// MarketEventPayload carries a price or market-status update.
type MarketEventPayload struct {
	SecurityID string
	Price      Money
	AsOf       time.Time
}

// Event is the tagged-union envelope the ingress dispatcher routes. Exactly
// one payload field is populated, selected by Header.EventType.
type Event struct {
	Header EventHeader

	Reference *ReferenceEventPayload
	Market    *MarketEventPayload
	Trade     *TradeEventPayload
	Contract  *ContractEventPayload
	Position  *PositionEventPayload
	Inventory *InventoryEventPayload
	Locate    *LocateEventPayload
	Workflow  *WorkflowEventPayload
}
