package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordEventDoesNotPanic(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordEvent("Trade", "Handled")
	m.RecordEvent("Market", "Rejected")
}

func TestRecordValidationLabelsByApprovalAndReason(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordValidation(true, "")
	m.RecordValidation(false, "ClientLimitExceeded")

	approved := testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("approved", ""))
	rejected := testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("rejected", "ClientLimitExceeded"))
	assert.Equal(t, float64(1), approved)
	assert.Equal(t, float64(1), rejected)
}

func TestObserveLatenciesDoNotPanic(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEventLatency("Trade", 10*time.Millisecond)
	m.ObserveValidationLatency(5 * time.Millisecond)
	m.ObserveLockWait("position", time.Millisecond)
	m.SetQueueDepth("3", 42)
}
