package observability

import "time"

// MetricsRegistry provides an interface for recording engine metrics.
// Components receive it by injection rather than touching the global
// Prometheus collectors directly.
type MetricsRegistry interface {
	// Slot pipeline metrics
	IncrementSlotOutcome(outcome string)

	// Bid protocol metrics
	RecordBidLatency(result string, duration time.Duration)

	// Beacon metrics
	IncrementBeacons(kind, outcome string)

	// Viewability metrics
	IncrementBillable()
	IncrementDwellResets()

	// Macro metrics
	IncrementMacroExpansions(macro string)

	// Render metrics
	IncrementRenders(adType string)

	// Identity gate metrics
	IncrementIdentityChecks(result string)

	// Context provider metrics
	IncrementContextRetries()
}

// PrometheusRegistry implements MetricsRegistry using the package-level
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementSlotOutcome(outcome string) {
	SlotOutcomeCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordBidLatency(result string, duration time.Duration) {
	BidLatency.WithLabelValues(result).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBeacons(kind, outcome string) {
	BeaconCount.WithLabelValues(kind, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementBillable() {
	BillableCount.Inc()
}

func (r *PrometheusRegistry) IncrementDwellResets() {
	DwellResetCount.Inc()
}

func (r *PrometheusRegistry) IncrementMacroExpansions(macro string) {
	MacroExpansionCount.WithLabelValues(macro).Inc()
}

func (r *PrometheusRegistry) IncrementRenders(adType string) {
	RenderCount.WithLabelValues(adType).Inc()
}

func (r *PrometheusRegistry) IncrementIdentityChecks(result string) {
	IdentityCheckCount.WithLabelValues(result).Inc()
}

func (r *PrometheusRegistry) IncrementContextRetries() {
	ContextRetryCount.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementSlotOutcome(outcome string) {}

func (r *NoOpRegistry) RecordBidLatency(result string, duration time.Duration) {}

func (r *NoOpRegistry) IncrementBeacons(kind, outcome string) {}

func (r *NoOpRegistry) IncrementBillable()    {}
func (r *NoOpRegistry) IncrementDwellResets() {}

func (r *NoOpRegistry) IncrementMacroExpansions(macro string) {}

func (r *NoOpRegistry) IncrementRenders(adType string) {}

func (r *NoOpRegistry) IncrementIdentityChecks(result string) {}

func (r *NoOpRegistry) IncrementContextRetries() {}
