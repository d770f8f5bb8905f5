package beacon

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/observability"
)

// Journey event names reported to the structured journey endpoint.
const (
	EventImpressionAt         = "impression_at"
	EventBillableImpressionAt = "billable_impression_at"
	EventClickedAt            = "clicked_at"
)

// Beacon kinds, used only as metric labels.
const (
	KindImpression = "impression"
	KindBillable   = "billable"
	KindClick      = "click"
	KindJourney    = "journey"
	KindWinNotice  = "win_notice"
	KindBillNotice = "bill_notice"
)

// Dispatcher delivers tracking URLs best-effort. Callers never block on
// delivery and never observe a failure: the only purpose of a beacon is the
// side effect of being received, and its response is opaque to us.
type Dispatcher struct {
	journeyURL string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	wg         sync.WaitGroup
}

// NewDispatcher creates a beacon dispatcher. journeyURL is the base of the
// structured journey endpoint; it may be empty, which disables journey
// events.
func NewDispatcher(journeyURL string, logger *zap.Logger, metrics observability.MetricsRegistry) *Dispatcher {
	return &Dispatcher{
		journeyURL: journeyURL,
		httpClient: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fire delivers a GET to the given URL on a background goroutine. An empty
// URL is a silent no-op. Delivery detaches from the caller's context
// cancellation so a completing pipeline cannot strand its beacons.
func (d *Dispatcher) Fire(ctx context.Context, kind, rawURL string) {
	if rawURL == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(ctx, kind, rawURL)
	}()
}

// JourneyEvent reports a structured lifecycle event for a bid:
// GET <journeyURL>?bid_id=<id>&event=<event>.
func (d *Dispatcher) JourneyEvent(ctx context.Context, bidID, event string) {
	if d.journeyURL == "" || bidID == "" {
		return
	}
	q := url.Values{}
	q.Set("bid_id", bidID)
	q.Set("event", event)
	d.Fire(ctx, KindJourney, d.journeyURL+"?"+q.Encode())
}

// Flush waits up to timeout for in-flight beacons to leave, giving them a
// chance to escape before the page unloads. It never waits longer.
func (d *Dispatcher) Flush(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func (d *Dispatcher) deliver(ctx context.Context, kind, rawURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		d.metrics.IncrementBeacons(kind, "failed")
		d.logger.Debug("beacon dropped", zap.String("kind", kind), zap.Error(err))
		return
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Beacon failures are recovered locally and never surfaced.
		d.metrics.IncrementBeacons(kind, "failed")
		d.logger.Debug("beacon failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	// The response is opaque: drain and close, never inspect.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	d.metrics.IncrementBeacons(kind, "delivered")
}
