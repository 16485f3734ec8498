package kafkabus

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primebrokerage/ims-core/internal/domain"
)

func TestEncodeDecodeRoundTripsTradeEvent(t *testing.T) {
	evt := domain.Event{
		Header: domain.EventHeader{
			EventID:       "evt-1",
			EventType:     domain.EventTrade,
			EventSubType:  "TradeCaptured",
			EffectiveTime: time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC),
			BusinessDate:  time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC),
			SourceSystem:  "oms",
		},
		Trade: &domain.TradeEventPayload{
			TradeID:    "T1",
			SecurityID: "AAPL",
			BookID:     "B1",
			Quantity:   decimal.NewFromInt(100),
			Side:       "Buy",
		},
	}

	data, err := Encode(evt)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, evt.Header.EventID, got.Header.EventID)
	assert.Equal(t, evt.Header.EventType, got.Header.EventType)
	assert.True(t, evt.Header.BusinessDate.Equal(got.Header.BusinessDate))
	require.NotNil(t, got.Trade)
	assert.Equal(t, "AAPL", got.Trade.SecurityID)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Trade.Quantity))
}

func TestDecodeRejectsUnknownEventType(t *testing.T) {
	_, err := Decode([]byte(`{"eventId":"e1","eventType":"Bogus","businessDate":"2026-07-29"}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedBusinessDate(t *testing.T) {
	_, err := Decode([]byte(`{"eventId":"e1","eventType":"Trade","businessDate":"not-a-date"}`))
	assert.Error(t, err)
}
