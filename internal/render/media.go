package render

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
)

// mediaParams describes one tracked media element to build. The onLoad and
// onClick hooks carry the variant-specific tracking calls; navigation and
// error handling are common to every variant.
type mediaParams struct {
	slot         models.Slot
	mediaURL     string
	creativeType string
	destination  string
	onLoad       func(ctx context.Context)
	onClick      func(ctx context.Context)
	onBillable   func(ctx context.Context)
}

// buildTrackedMedia constructs the anchor-wrapped media element for a
// creative and wires its lifecycle tracking: a one-shot impression on media
// load, the error placeholder on media failure, click tracking followed by
// navigation, and viewability registration for the billable impression.
// Viewability registration happens last, after the load listener is bound,
// so within one slot the plain impression always precedes the billable one.
func (r *Renderer) buildTrackedMedia(ctx context.Context, ph *dom.Placeholder, p mediaParams) *dom.Element {
	logger := middleware.LoggerFromContext(ctx, r.logger)
	anchor := dom.NewElement("a").SetAttr("href", p.destination)

	var media *dom.Element
	loadEvent := dom.EventLoad
	if p.creativeType == models.CreativeTypeVideo {
		media = dom.NewElement("video").
			SetAttr("src", p.mediaURL).
			SetAttr("autoplay", "").
			SetAttr("loop", "").
			SetAttr("muted", "").
			SetAttr("playsinline", "")
		loadEvent = dom.EventLoadedData
	} else {
		media = dom.NewElement("img").SetAttr("src", p.mediaURL)
	}
	media.SetAttr("style", "width:100%;height:100%;object-fit:cover;display:block;")
	anchor.AppendChild(media)

	// The impression fires exactly once even if the host redelivers the
	// load event.
	var loadOnce sync.Once
	media.On(loadEvent, func() {
		loadOnce.Do(func() {
			if p.onLoad != nil {
				p.onLoad(ctx)
			}
		})
	})

	media.On(dom.EventError, func() {
		logger.Warn("creative media failed to load",
			zap.Int("slot_id", p.slot.ID),
			zap.String("media_url", p.mediaURL))
		r.metrics.IncrementSlotOutcome(models.OutcomeRenderFailed)
		ph.SetContent(dom.ErrorPlaceholder(p.slot.Width, p.slot.Height, "Ad failed to load"))
	})

	media.On(dom.EventClick, func() {
		if p.onClick != nil {
			p.onClick(ctx)
		}
		// Navigation happens on both beacon success and failure paths; the
		// fixed delay gives the beacon a chance to leave the page first.
		dest := p.destination
		time.AfterFunc(r.navigateWait, func() {
			r.navigate(dest)
		})
	})

	if p.onBillable != nil {
		r.viewability.Observe(media, func() {
			p.onBillable(ctx)
		})
	}

	return anchor
}

// resolveDestination applies the documented first-present-wins precedence
// over a creative's destination candidates: explicit destination, landing
// page, raw click URL, else a no-op anchor.
func resolveDestination(t *models.Tracking) string {
	if t != nil {
		if t.DestinationURL != "" {
			return t.DestinationURL
		}
		if t.LandingPageURL != "" {
			return t.LandingPageURL
		}
		if t.ClickURL != "" {
			return t.ClickURL
		}
	}
	return "#"
}
