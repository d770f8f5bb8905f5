package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// slot pipeline outcomes, labelled by terminal state
	SlotOutcomeCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_slot_outcomes_total",
			Help: "Total slot pipelines reaching each terminal state",
		},
		[]string{"outcome"},
	)

	// bid request latency in seconds, labelled by result
	BidLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotengine_bid_duration_seconds",
			Help:    "Histogram of bid request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// beacons dispatched, labelled by kind (impression, click, billable,
	// journey, win_notice, bill_notice) and delivery outcome
	BeaconCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_beacons_total",
			Help: "Total tracking beacons dispatched",
		},
		[]string{"kind", "outcome"},
	)

	// billable impressions fired by the viewability tracker
	BillableCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotengine_billable_impressions_total",
			Help: "Total billable impressions fired",
		},
	)

	// viewability dwell resets (element dropped below threshold mid-dwell)
	DwellResetCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotengine_viewability_dwell_resets_total",
			Help: "Total dwell timers cancelled before expiry",
		},
	)

	// macro expansions performed, labelled by token
	MacroExpansionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_macro_expansions_total",
			Help: "Total auction macro expansions performed",
		},
		[]string{"macro"},
	)

	// creatives rendered, labelled by ad type
	RenderCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_renders_total",
			Help: "Total creatives rendered",
		},
		[]string{"ad_type"},
	)

	// identity gate checks, labelled by result
	IdentityCheckCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotengine_identity_checks_total",
			Help: "Total identity gate checks",
		},
		[]string{"result"},
	)

	// context readiness polls that had to back off
	ContextRetryCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotengine_context_retries_total",
			Help: "Total device context readiness retries",
		},
	)
)

// RegisterMetrics registers all engine collectors with the default registry.
// It must be called once at startup before the metrics endpoint is served.
func RegisterMetrics() {
	prometheus.MustRegister(
		SlotOutcomeCount,
		BidLatency,
		BeaconCount,
		BillableCount,
		DwellResetCount,
		MacroExpansionCount,
		RenderCount,
		IdentityCheckCount,
		ContextRetryCount,
	)
}
