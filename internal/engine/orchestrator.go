package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/device"
	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

var tracer = otel.Tracer("slotengine")

// identityGate validates a request-scoped identifier before any slot
// processing begins.
type identityGate interface {
	Validate(ctx context.Context, pid string) error
}

// bidRequester issues the single bid request for one slot.
type bidRequester interface {
	RequestBid(ctx context.Context, slot models.Slot, device models.DeviceContext, pid string) (*models.BidResponse, error)
}

// creativeRenderer builds the tracked creative for one decided slot.
type creativeRenderer interface {
	Render(ctx context.Context, ph *dom.Placeholder, resp *models.BidResponse, slot models.Slot) error
}

// Engine is the slot orchestrator: the only component that knows about all
// slots. It gates on identity and device context, then drives each declared
// placeholder through its own pipeline, concurrently and independently.
type Engine struct {
	cfg      config.Config
	provider device.Provider
	identity identityGate
	bids     bidRequester
	renderer creativeRenderer
	logger   *zap.Logger
	metrics  observability.MetricsRegistry
}

// Summary aggregates the terminal states of one run.
type Summary struct {
	Slots    int
	Rendered int
	Failed   int
	Outcomes map[string]int
}

// New creates the orchestrator.
func New(cfg config.Config, provider device.Provider, gate identityGate, bids bidRequester, renderer creativeRenderer, logger *zap.Logger, metrics observability.MetricsRegistry) *Engine {
	return &Engine{
		cfg:      cfg,
		provider: provider,
		identity: gate,
		bids:     bids,
		renderer: renderer,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run drives every declared placeholder of doc to a terminal state. All
// slot-level failures are caught and rendered as a visible placeholder; Run
// returns once every slot has settled, regardless of individual outcomes.
// Only the two fatal preconditions return an error, and both abort the run
// before any slot is touched: an identity rejection under the gate policy,
// and a device context that never becomes available within the backoff
// window.
func (e *Engine) Run(ctx context.Context, doc *dom.Document) (Summary, error) {
	ctx, span := tracer.Start(ctx, "engine.Run")
	defer span.End()

	if e.cfg.IdentityPolicy == config.IdentityPolicyGate {
		if err := e.identity.Validate(ctx, e.cfg.PID); err != nil {
			span.SetAttributes(attribute.String("run.result", "identity_rejected"))
			return Summary{}, fmt.Errorf("identity gate: %w", err)
		}
	}

	deviceCtx, err := e.waitForContext(ctx)
	if err != nil {
		span.SetAttributes(attribute.String("run.result", "context_unavailable"))
		return Summary{}, err
	}

	placeholders := doc.Placeholders()
	span.SetAttributes(attribute.Int("run.slots", len(placeholders)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[string]int)
	)
	settle := func(outcome string) {
		mu.Lock()
		outcomes[outcome]++
		mu.Unlock()
		e.metrics.IncrementSlotOutcome(outcome)
	}

	for _, ph := range placeholders {
		slot, err := models.ParseSlot(ph.SlotID, ph.Width, ph.Height)
		if err != nil {
			// Misconfigured slots settle immediately, with no network call.
			e.logger.Warn("slot misconfigured", zap.String("slot_id", ph.SlotID), zap.Error(err))
			ph.SetContent(dom.ErrorPlaceholder(placeholderDims(ph)))
			settle(models.OutcomeMisconfigured)
			continue
		}

		ph.SetContent(dom.LoadingPlaceholder(slot.Width, slot.Height))

		wg.Add(1)
		go func(ph *dom.Placeholder, slot models.Slot) {
			defer wg.Done()
			settle(e.runSlot(ctx, ph, slot, deviceCtx))
		}(ph, slot)
	}

	wg.Wait()

	summary := Summary{Slots: len(placeholders), Outcomes: outcomes}
	for outcome, n := range outcomes {
		if outcome == models.OutcomeRendered {
			summary.Rendered += n
		} else {
			summary.Failed += n
		}
	}
	e.logger.Info("run settled",
		zap.Int("slots", summary.Slots),
		zap.Int("rendered", summary.Rendered),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// runSlot drives one slot's pipeline to its terminal state and returns the
// outcome label. A panic in the pipeline settles the slot as a render
// failure; it never cancels or delays a sibling.
func (e *Engine) runSlot(ctx context.Context, ph *dom.Placeholder, slot models.Slot, deviceCtx models.DeviceContext) (outcome string) {
	ctx, span := tracer.Start(ctx, "engine.slot")
	defer span.End()
	span.SetAttributes(
		attribute.Int("slot.id", slot.ID),
		attribute.Int("slot.width", slot.Width),
		attribute.Int("slot.height", slot.Height),
	)

	logger := e.logger.With(zap.Int("slot_id", slot.ID))
	ctx = middleware.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("slot pipeline panicked", zap.Any("panic", r))
			ph.SetContent(dom.ErrorPlaceholder(slot.Width, slot.Height, "Ad unavailable"))
			outcome = models.OutcomeRenderFailed
		}
		span.SetAttributes(attribute.String("slot.outcome", outcome))
	}()

	resp, err := e.bids.RequestBid(ctx, slot, deviceCtx, e.cfg.PID)
	if err != nil {
		logger.Warn("bid request failed", zap.Error(err))
		ph.SetContent(dom.ErrorPlaceholder(slot.Width, slot.Height, "Ad could not be loaded"))
		return models.ClassifyOutcome(err)
	}

	if err := e.renderer.Render(ctx, ph, resp, slot); err != nil {
		logger.Warn("creative rejected", zap.String("ad_type", resp.AdType), zap.Error(err))
		ph.SetContent(dom.ErrorPlaceholder(slot.Width, slot.Height, "Ad unavailable"))
		return models.ClassifyOutcome(err)
	}

	logger.Debug("slot rendered", zap.String("ad_type", resp.AdType))
	return models.OutcomeRendered
}

// waitForContext polls the device provider with exponential backoff:
// delay(n) = base * 2^n for n < maxAttempts, a bounded worst-case wait of
// base * (2^maxAttempts - 1). Exhaustion is a fatal precondition, not a
// per-slot failure.
func (e *Engine) waitForContext(ctx context.Context) (models.DeviceContext, error) {
	if deviceCtx, ok := e.provider.Context(); ok {
		return deviceCtx, nil
	}
	for attempt := 0; attempt < e.cfg.ContextMaxAttempts; attempt++ {
		delay := e.cfg.ContextBackoffBase << attempt
		e.logger.Debug("device context not ready, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))
		e.metrics.IncrementContextRetries()
		select {
		case <-ctx.Done():
			return models.DeviceContext{}, fmt.Errorf("%w: %v", models.ErrConfigUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		if deviceCtx, ok := e.provider.Context(); ok {
			return deviceCtx, nil
		}
	}
	return models.DeviceContext{}, fmt.Errorf("%w: still unavailable after %d attempts",
		models.ErrConfigUnavailable, e.cfg.ContextMaxAttempts)
}

// placeholderDims extracts best-effort dimensions for a slot that failed to
// parse, so its placeholder still occupies a visible box, plus the
// misconfiguration message.
func placeholderDims(ph *dom.Placeholder) (int, int, string) {
	w := atoiOr(ph.Width, 100)
	h := atoiOr(ph.Height, 100)
	return w, h, "Ad slot misconfigured"
}

func atoiOr(s string, def int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return def
	}
	return n
}
