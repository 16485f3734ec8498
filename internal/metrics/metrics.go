// Package metrics exposes the operational surface spec.md §6 names:
// events processed/rejected/deferred, validations approved/rejected,
// cache hits/misses, and end-to-end/validation/lock-wait latency
// histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the core registers.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	ValidationsTotal   *prometheus.CounterVec
	CacheHitsTotal     *prometheus.CounterVec
	EndToEndLatency    *prometheus.HistogramVec
	ValidationLatency  prometheus.Histogram
	LockWaitLatency    *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
}

// New returns a Metrics instance registered against registerer. Pass
// prometheus.DefaultRegisterer for process-wide registration, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across runs.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ims_events_total",
				Help: "Events observed by the ingress dispatcher, by eventType and outcome (Handled/Rejected/Deferred).",
			},
			[]string{"event_type", "outcome"},
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ims_validations_total",
				Help: "Short-sell/long-sell order validations, by approved/rejected and rejection reason.",
			},
			[]string{"result", "reason"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ims_cache_requests_total",
				Help: "Inventory availability cache lookups, by hit/miss.",
			},
			[]string{"result"},
		),
		EndToEndLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ims_event_latency_seconds",
				Help:    "End-to-end dispatch-to-handled latency per event subtype.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .15, .25, .5, 1, 2},
			},
			[]string{"event_subtype"},
		),
		ValidationLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ims_shortsell_validation_latency_seconds",
				Help:    "Short-sell validator end-to-end latency; budget is 150ms p99 (spec.md §5).",
				Buckets: []float64{.005, .01, .025, .05, .075, .1, .125, .15, .2, .3, .5},
			},
		),
		LockWaitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ims_lock_wait_seconds",
				Help:    "Time spent waiting to acquire a keyed lock, by lock domain.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
			},
			[]string{"domain"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ims_ingress_queue_depth",
				Help: "Current depth of each ingress dispatcher bucket queue.",
			},
			[]string{"bucket"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.EventsTotal,
			m.ValidationsTotal,
			m.CacheHitsTotal,
			m.EndToEndLatency,
			m.ValidationLatency,
			m.LockWaitLatency,
			m.QueueDepth,
		)
	}
	return m
}

// RecordEvent increments the events counter for an (eventType, outcome) pair.
func (m *Metrics) RecordEvent(eventType, outcome string) {
	m.EventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordValidation increments the validations counter. reason is empty on
// approval.
func (m *Metrics) RecordValidation(approved bool, reason string) {
	result := "approved"
	if !approved {
		result = "rejected"
	}
	m.ValidationsTotal.WithLabelValues(result, reason).Inc()
}

// RecordCacheResult increments the cache hit/miss counter.
func (m *Metrics) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheHitsTotal.WithLabelValues(result).Inc()
}

// ObserveEventLatency records the dispatch-to-handled duration for an
// event subtype.
func (m *Metrics) ObserveEventLatency(eventSubType string, d time.Duration) {
	m.EndToEndLatency.WithLabelValues(eventSubType).Observe(d.Seconds())
}

// ObserveValidationLatency records a short-sell validator call's duration.
func (m *Metrics) ObserveValidationLatency(d time.Duration) {
	m.ValidationLatency.Observe(d.Seconds())
}

// ObserveLockWait records time spent waiting to acquire a keyed lock in
// the named domain (e.g. "position", "inventory", "limits").
func (m *Metrics) ObserveLockWait(domain string, d time.Duration) {
	m.LockWaitLatency.WithLabelValues(domain).Observe(d.Seconds())
}

// SetQueueDepth records a bucket's current backlog for the health surface.
func (m *Metrics) SetQueueDepth(bucket string, depth int) {
	m.QueueDepth.WithLabelValues(bucket).Set(float64(depth))
}
