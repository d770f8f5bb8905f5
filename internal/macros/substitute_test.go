package macros

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

func newTestEngine(t *testing.T) *Engine {
	return New(zaptest.NewLogger(t), observability.NewNoOpRegistry())
}

func ortbResponse() *models.BidResponse {
	return &models.BidResponse{
		AdType:   models.AdTypeORTB,
		ID:       "auction-1",
		Currency: "USD",
		SeatBid: []models.SeatBid{{
			Seat: "seat-9",
			Bid: []models.Bid{{
				ID:    "b1",
				ImpID: "imp-1",
				Price: 2.5,
				AdID:  "ad-7",
			}},
		}},
	}
}

func TestSubstitute(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "price and bid id",
			template: "price=${AUCTION_PRICE}&id=${AUCTION_BID_ID}",
			want:     "price=2.5&id=b1",
		},
		{
			name:     "all tokens",
			template: "${AUCTION_ID}/${AUCTION_IMP_ID}/${AUCTION_SEAT_ID}/${AUCTION_CURRENCY}/${AUCTION_AD_ID}",
			want:     "auction-1/imp-1/seat-9/USD/ad-7",
		},
		{
			name:     "always-empty tokens",
			template: "x=${AUCTION_MBR}&y=${AUCTION_LOSS}",
			want:     "x=&y=",
		},
		{
			name:     "every occurrence replaced",
			template: "${AUCTION_BID_ID}-${AUCTION_BID_ID}",
			want:     "b1-b1",
		},
		{
			name:     "no tokens",
			template: "https://example.com/win",
			want:     "https://example.com/win",
		},
		{
			name:     "empty template",
			template: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Substitute(tt.template, ortbResponse()))
		})
	}
}

func TestSubstitute_NoBidPayload(t *testing.T) {
	e := newTestEngine(t)

	// A response with no bid payload returns the template unchanged,
	// tokens included.
	resp := &models.BidResponse{AdType: models.AdTypeBrand}
	tpl := "price=${AUCTION_PRICE}"
	assert.Equal(t, tpl, e.Substitute(tpl, resp))
}

func TestSubstitute_SinglePass(t *testing.T) {
	e := newTestEngine(t)

	// A substituted value containing another macro token must not be
	// expanded again.
	resp := ortbResponse()
	resp.SeatBid[0].Bid[0].ID = "${AUCTION_PRICE}"
	got := e.Substitute("id=${AUCTION_BID_ID}", resp)
	assert.Equal(t, "id=${AUCTION_PRICE}", got)
}

func TestSubstitute_MissingValuesResolveEmpty(t *testing.T) {
	e := newTestEngine(t)

	resp := &models.BidResponse{
		AdType:  models.AdTypeORTB,
		SeatBid: []models.SeatBid{{Bid: []models.Bid{{ID: "b1", Price: 2.5}}}},
	}
	got := e.Substitute("cur=${AUCTION_CURRENCY}&seat=${AUCTION_SEAT_ID}&ad=${AUCTION_AD_ID}", resp)
	assert.Equal(t, "cur=&seat=&ad=", got)
}
