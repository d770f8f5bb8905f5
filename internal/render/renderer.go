package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/beacon"
	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/macros"
	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// Options carries the renderer's host-facing knobs.
type Options struct {
	// CDNBaseURL is prefixed onto relative creative file paths.
	CDNBaseURL string
	// NavigateWait is how long a click waits before navigating, giving the
	// click beacon a chance to leave the page.
	NavigateWait time.Duration
	// Navigate is invoked with the resolved destination URL when a creative
	// is clicked. A nil Navigate only logs.
	Navigate func(url string)
}

// Renderer turns a bid response into the tracked creative subtree for one
// slot. Dispatch is polymorphic over the response's ad type; an unknown type
// or a creative missing its required fields is a terminal invalid-creative
// outcome for that slot, never an exception that touches its siblings.
type Renderer struct {
	beacons      *beacon.Dispatcher
	viewability  viewabilityRegistrar
	macros       *macros.Engine
	logger       *zap.Logger
	metrics      observability.MetricsRegistry
	cdnBase      string
	navigateWait time.Duration
	navigate     func(url string)
}

// viewabilityRegistrar is the slice of the viewability tracker the renderer
// needs: one-shot billable registration per element.
type viewabilityRegistrar interface {
	Observe(el *dom.Element, onBillable func())
}

// NewRenderer creates a renderer.
func NewRenderer(beacons *beacon.Dispatcher, viewability viewabilityRegistrar, macroEngine *macros.Engine, opts Options, logger *zap.Logger, metrics observability.MetricsRegistry) *Renderer {
	navigate := opts.Navigate
	if navigate == nil {
		navigate = func(url string) {
			logger.Info("navigate", zap.String("url", url))
		}
	}
	return &Renderer{
		beacons:      beacons,
		viewability:  viewability,
		macros:       macroEngine,
		logger:       logger,
		metrics:      metrics,
		cdnBase:      opts.CDNBaseURL,
		navigateWait: opts.NavigateWait,
		navigate:     navigate,
	}
}

// Render builds the creative for resp into the placeholder. The returned
// error, if any, wraps one of the slot error taxonomy sentinels; the caller
// converts it into the slot's terminal placeholder state.
func (r *Renderer) Render(ctx context.Context, ph *dom.Placeholder, resp *models.BidResponse, slot models.Slot) error {
	if resp == nil {
		return fmt.Errorf("%w: no decision payload", models.ErrInvalidCreative)
	}

	switch resp.AdType {
	case models.AdTypeBrand, models.AdTypeTesting:
		return r.renderFile(ctx, ph, resp, slot)
	case models.AdTypeORTB:
		return r.renderORTB(ctx, ph, resp, slot)
	default:
		return fmt.Errorf("%w: unsupported ad type %q", models.ErrInvalidCreative, resp.AdType)
	}
}

// renderFile renders brand and testing creatives: a media file served from
// the CDN with a flat tracking block. The testing variant follows the same
// destination precedence as brand; a missing tracking block degrades to a
// no-op destination rather than failing the slot.
func (r *Renderer) renderFile(ctx context.Context, ph *dom.Placeholder, resp *models.BidResponse, slot models.Slot) error {
	if resp.FullFilePath == "" {
		return fmt.Errorf("%w: creative has no media path", models.ErrInvalidCreative)
	}

	tracking := resp.Tracking
	anchor := r.buildTrackedMedia(ctx, ph, mediaParams{
		slot:         slot,
		mediaURL:     r.resolveMediaURL(resp.FullFilePath),
		creativeType: resp.CreativeType,
		destination:  resolveDestination(tracking),
		onLoad: func(ctx context.Context) {
			if tracking != nil {
				r.beacons.Fire(ctx, beacon.KindImpression, tracking.ImpressionURL)
			}
		},
		onClick: func(ctx context.Context) {
			if tracking != nil {
				r.beacons.Fire(ctx, beacon.KindClick, tracking.ClickURL)
			}
		},
		onBillable: func(ctx context.Context) {
			if tracking != nil {
				r.beacons.Fire(ctx, beacon.KindBillable, tracking.BillableImpressionURL)
			}
		},
	})

	ph.SetContent(anchor)
	r.metrics.IncrementRenders(resp.AdType)
	middleware.LoggerFromContext(ctx, r.logger).Debug("creative rendered",
		zap.Int("slot_id", slot.ID),
		zap.String("ad_type", resp.AdType),
		zap.String("brand", resp.BrandName))
	return nil
}

// renderORTB renders an OpenRTB creative from its ad markup. On media load
// it fires the embedded impression beacon, the structured impression journey
// event, and the macro-expanded win notice; at billable visibility it fires
// the billable journey event and the macro-expanded bill notice.
func (r *Renderer) renderORTB(ctx context.Context, ph *dom.Placeholder, resp *models.BidResponse, slot models.Slot) error {
	bid := resp.WinningBid()
	if bid == nil {
		return fmt.Errorf("%w: ortb response carries no bid", models.ErrInvalidCreative)
	}

	markup, err := ParseAdMarkup(bid.Adm)
	if err != nil {
		return err
	}

	winURL := r.macros.Substitute(bid.NURL, resp)
	billURL := r.macros.Substitute(bid.BURL, resp)
	bidID := bid.ID

	anchor := r.buildTrackedMedia(ctx, ph, mediaParams{
		slot:         slot,
		mediaURL:     markup.ImageURL,
		creativeType: models.CreativeTypeImage,
		destination:  firstNonEmpty(markup.ClickURL, "#"),
		onLoad: func(ctx context.Context) {
			r.beacons.Fire(ctx, beacon.KindImpression, markup.ImpressionURL)
			r.beacons.JourneyEvent(ctx, bidID, beacon.EventImpressionAt)
			r.beacons.Fire(ctx, beacon.KindWinNotice, winURL)
		},
		onClick: func(ctx context.Context) {
			r.beacons.JourneyEvent(ctx, bidID, beacon.EventClickedAt)
		},
		onBillable: func(ctx context.Context) {
			r.beacons.JourneyEvent(ctx, bidID, beacon.EventBillableImpressionAt)
			r.beacons.Fire(ctx, beacon.KindBillNotice, billURL)
		},
	})

	ph.SetContent(anchor)
	r.metrics.IncrementRenders(resp.AdType)
	middleware.LoggerFromContext(ctx, r.logger).Debug("ortb creative rendered",
		zap.Int("slot_id", slot.ID),
		zap.String("bid_id", bidID),
		zap.Float64("price", bid.Price))
	return nil
}

// resolveMediaURL prefixes relative creative paths with the CDN base.
func (r *Renderer) resolveMediaURL(path string) string {
	if r.cdnBase == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(r.cdnBase, "/") + "/" + strings.TrimPrefix(path, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
