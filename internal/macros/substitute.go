package macros

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// Auction macro tokens recognised in notification URLs.
const (
	TokenAuctionID       = "${AUCTION_ID}"
	TokenAuctionBidID    = "${AUCTION_BID_ID}"
	TokenAuctionImpID    = "${AUCTION_IMP_ID}"
	TokenAuctionSeatID   = "${AUCTION_SEAT_ID}"
	TokenAuctionPrice    = "${AUCTION_PRICE}"
	TokenAuctionCurrency = "${AUCTION_CURRENCY}"
	TokenAuctionAdID     = "${AUCTION_AD_ID}"
	// Always-empty tokens: the engine serves a single bid, so minimum bid to
	// win and loss reason never have values.
	TokenAuctionMBR  = "${AUCTION_MBR}"
	TokenAuctionLoss = "${AUCTION_LOSS}"
)

// Engine rewrites auction macros in notification URLs from one bid response.
type Engine struct {
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// New creates a macro substitution engine.
func New(logger *zap.Logger, metrics observability.MetricsRegistry) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// Substitute replaces every occurrence of each auction macro in template
// with its value from resp. It is pure and total: a response with no bid
// payload returns the template unchanged, and tokens with no backing value
// resolve to the empty string. Replacement is a single literal pass; a
// substituted value that happens to contain a macro token is not expanded
// again.
func (e *Engine) Substitute(template string, resp *models.BidResponse) string {
	if template == "" {
		return template
	}
	bid := resp.WinningBid()
	if bid == nil {
		return template
	}

	values := map[string]string{
		TokenAuctionID:       resp.AuctionID(),
		TokenAuctionBidID:    bid.ID,
		TokenAuctionImpID:    bid.ImpID,
		TokenAuctionSeatID:   resp.Seat(),
		TokenAuctionPrice:    strconv.FormatFloat(bid.Price, 'f', -1, 64),
		TokenAuctionCurrency: resp.Currency,
		TokenAuctionAdID:     bid.AdID,
		TokenAuctionMBR:      "",
		TokenAuctionLoss:     "",
	}

	pairs := make([]string, 0, 2*len(values))
	for token, value := range values {
		if strings.Contains(template, token) {
			e.metrics.IncrementMacroExpansions(strings.Trim(token, "${}"))
		}
		pairs = append(pairs, token, value)
	}

	expanded := strings.NewReplacer(pairs...).Replace(template)
	if expanded != template {
		e.logger.Debug("expanded auction macros",
			zap.String("template", template),
			zap.String("expanded", expanded))
	}
	return expanded
}
