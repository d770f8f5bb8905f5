package viewability

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// Tracker decides when an impression becomes billable. Per tracked element
// it runs a small state machine over the host's visibility samples: once the
// element is at least threshold visible for one continuous dwell period, the
// bound callback fires exactly once and observation of that element stops
// for good. Partial dwell does not carry over; dropping below the threshold
// resets the clock. This matches the industry viewable-impression standard
// of >=50% area for >=1 continuous second.
type Tracker struct {
	threshold float64
	dwell     time.Duration
	logger    *zap.Logger
	metrics   observability.MetricsRegistry

	mu     sync.Mutex
	states map[*dom.Element]*state
	closed bool
}

type state struct {
	visibleSince time.Time
	timer        *time.Timer
	fired        bool
	callback     func()
}

// NewTracker creates a tracker with the given visibility threshold and
// required continuous dwell.
func NewTracker(threshold float64, dwell time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Tracker {
	return &Tracker{
		threshold: threshold,
		dwell:     dwell,
		logger:    logger,
		metrics:   metrics,
		states:    make(map[*dom.Element]*state),
	}
}

// Observe registers an element with its billable callback. Registering an
// element that is already observed, or whose callback has already fired, is
// a no-op: the guard keeps registration idempotent.
func (t *Tracker) Observe(el *dom.Element, onBillable func()) {
	if el == nil || onBillable == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if _, exists := t.states[el]; exists {
		return
	}
	t.states[el] = &state{callback: onBillable}
}

// Report feeds one visibility sample for an element. The host calls it on
// every intersection change; samples for untracked or already-fired elements
// are ignored.
func (t *Tracker) Report(el *dom.Element, ratio float64, intersecting bool) {
	t.mu.Lock()
	st, ok := t.states[el]
	if !ok || st.fired || t.closed {
		t.mu.Unlock()
		return
	}

	visible := intersecting && ratio >= t.threshold
	switch {
	case visible && st.visibleSince.IsZero():
		// Idle -> Accumulating: start the dwell clock.
		st.visibleSince = time.Now()
		st.timer = time.AfterFunc(t.dwell, func() { t.fire(el) })
	case !visible && !st.visibleSince.IsZero():
		// Accumulating -> Idle: the dwell was interrupted, discard it.
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.visibleSince = time.Time{}
		t.metrics.IncrementDwellResets()
	}
	t.mu.Unlock()
}

// fire runs when a dwell timer elapses without an intervening drop.
func (t *Tracker) fire(el *dom.Element) {
	t.mu.Lock()
	st, ok := t.states[el]
	if !ok || st.fired || st.visibleSince.IsZero() || t.closed {
		t.mu.Unlock()
		return
	}
	st.fired = true
	st.timer = nil
	cb := st.callback
	st.callback = nil
	t.mu.Unlock()

	t.metrics.IncrementBillable()
	t.logger.Debug("billable impression fired")
	cb()
}

// Shutdown tears down all observation unconditionally, regardless of state.
// It runs on page unload so no observer outlives the page.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for _, st := range t.states {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	t.states = make(map[*dom.Element]*state)
}
