// Package kafkabus adapts the ingress Dispatcher and egress event publishing
// to Kafka topics via segmentio/kafka-go, partitioned by securityId per
// spec.md §6's external interface contract.
package kafkabus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/primebrokerage/ims-core/internal/domain"
)

// envelope is the wire shape spec.md §6 names: eventId, eventType,
// eventSubType, effectiveTime (RFC 3339 UTC), businessDate (ISO date),
// sourceSystem, and a versioned payload.
type envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventSubType  string          `json:"eventSubType"`
	EffectiveTime time.Time       `json:"effectiveTime"`
	BusinessDate  string          `json:"businessDate"`
	SourceSystem  string          `json:"sourceSystem"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode marshals evt into its wire envelope. The partition key (securityId)
// is derived by the caller, not carried in the envelope body.
func Encode(evt domain.Event) ([]byte, error) {
	payload, err := payloadOf(evt)
	if err != nil {
		return nil, err
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := envelope{
		EventID:       evt.Header.EventID,
		EventType:     string(evt.Header.EventType),
		EventSubType:  evt.Header.EventSubType,
		EffectiveTime: evt.Header.EffectiveTime,
		BusinessDate:  evt.Header.BusinessDate.Format("2006-01-02"),
		SourceSystem:  evt.Header.SourceSystem,
		Payload:       rawPayload,
	}
	return json.Marshal(env)
}

// Decode unmarshals a wire envelope back into a domain.Event.
func Decode(data []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	businessDate, err := time.Parse("2006-01-02", env.BusinessDate)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parse businessDate: %w", err)
	}
	evt := domain.Event{
		Header: domain.EventHeader{
			EventID:       env.EventID,
			EventType:     domain.EventType(env.EventType),
			EventSubType:  env.EventSubType,
			EffectiveTime: env.EffectiveTime,
			BusinessDate:  businessDate,
			SourceSystem:  env.SourceSystem,
		},
	}
	if err := unmarshalPayload(evt.Header.EventType, env.Payload, &evt); err != nil {
		return domain.Event{}, err
	}
	return evt, nil
}

func payloadOf(evt domain.Event) (any, error) {
	switch evt.Header.EventType {
	case domain.EventReference:
		return evt.Reference, nil
	case domain.EventMarket:
		return evt.Market, nil
	case domain.EventTrade:
		return evt.Trade, nil
	case domain.EventContract:
		return evt.Contract, nil
	case domain.EventPosition:
		return evt.Position, nil
	case domain.EventInventory:
		return evt.Inventory, nil
	case domain.EventLocate:
		return evt.Locate, nil
	case domain.EventWorkflow:
		return evt.Workflow, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Header.EventType)
	}
}

func unmarshalPayload(eventType domain.EventType, raw json.RawMessage, evt *domain.Event) error {
	switch eventType {
	case domain.EventReference:
		evt.Reference = &domain.ReferenceEventPayload{}
		return json.Unmarshal(raw, evt.Reference)
	case domain.EventMarket:
		evt.Market = &domain.MarketEventPayload{}
		return json.Unmarshal(raw, evt.Market)
	case domain.EventTrade:
		evt.Trade = &domain.TradeEventPayload{}
		return json.Unmarshal(raw, evt.Trade)
	case domain.EventContract:
		evt.Contract = &domain.ContractEventPayload{}
		return json.Unmarshal(raw, evt.Contract)
	case domain.EventPosition:
		evt.Position = &domain.PositionEventPayload{}
		return json.Unmarshal(raw, evt.Position)
	case domain.EventInventory:
		evt.Inventory = &domain.InventoryEventPayload{}
		return json.Unmarshal(raw, evt.Inventory)
	case domain.EventLocate:
		evt.Locate = &domain.LocateEventPayload{}
		return json.Unmarshal(raw, evt.Locate)
	case domain.EventWorkflow:
		evt.Workflow = &domain.WorkflowEventPayload{}
		return json.Unmarshal(raw, evt.Workflow)
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}
}
