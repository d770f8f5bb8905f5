package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/device"
	"github.com/patrickwarner/slotengine/internal/dom"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

type stubGate struct {
	err   error
	calls atomic.Int32
}

func (g *stubGate) Validate(ctx context.Context, pid string) error {
	g.calls.Add(1)
	return g.err
}

type stubBidder struct {
	calls atomic.Int32
	// fail and panics select per-slot behavior; unlisted slots get a brand
	// response.
	fail   map[int]error
	panics map[int]bool
}

func (b *stubBidder) RequestBid(ctx context.Context, slot models.Slot, dev models.DeviceContext, pid string) (*models.BidResponse, error) {
	b.calls.Add(1)
	if b.panics[slot.ID] {
		panic("bidder exploded")
	}
	if err := b.fail[slot.ID]; err != nil {
		return nil, err
	}
	return &models.BidResponse{
		AdType:       models.AdTypeBrand,
		FullFilePath: "https://cdn.example.com/ad.png",
		CreativeType: models.CreativeTypeImage,
	}, nil
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(ctx context.Context, ph *dom.Placeholder, resp *models.BidResponse, slot models.Slot) error {
	if r.err != nil {
		return r.err
	}
	ph.SetContent(dom.NewElement("a"))
	return nil
}

// slowProvider becomes ready after a fixed number of polls.
type slowProvider struct {
	readyAfter int
	polls      atomic.Int32
}

func (p *slowProvider) Context() (models.DeviceContext, bool) {
	n := int(p.polls.Add(1))
	if p.readyAfter >= 0 && n > p.readyAfter {
		return models.DeviceContext{UA: "slow"}, true
	}
	return models.DeviceContext{}, false
}

func testConfig() config.Config {
	return config.Config{
		PID:                "pid-1",
		IdentityPolicy:     config.IdentityPolicyGate,
		ContextBackoffBase: time.Millisecond,
		ContextMaxAttempts: 5,
	}
}

func parseDoc(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseDocument(strings.NewReader("<html><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func placeholderHTML(id int) string {
	return fmt.Sprintf(`<div data-slot_id="%d" data-width="300" data-height="250"></div>`, id)
}

func newTestEngine(t *testing.T, cfg config.Config, provider device.Provider, gate *stubGate, bids *stubBidder, renderer *stubRenderer) *Engine {
	return New(cfg, provider, gate, bids, renderer, zaptest.NewLogger(t), observability.NewNoOpRegistry())
}

func TestRun_AllSettled(t *testing.T) {
	// One slot's bid request fails, one panics; the others still settle and
	// Run completes.
	doc := parseDoc(t, placeholderHTML(1)+placeholderHTML(2)+placeholderHTML(3))
	bids := &stubBidder{
		fail:   map[int]error{2: models.ErrBidNetwork},
		panics: map[int]bool{3: true},
	}
	eng := newTestEngine(t, testConfig(), device.Static{}, &stubGate{}, bids, &stubRenderer{})

	summary, err := eng.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Slots)
	assert.Equal(t, 1, summary.Rendered)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeBidNetwork])
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeRenderFailed])

	// Every slot has visible terminal content.
	for _, ph := range doc.Placeholders() {
		assert.NotNil(t, ph.Content())
	}
}

func TestRun_MisconfiguredSlotsNeverHitNetwork(t *testing.T) {
	doc := parseDoc(t,
		`<div data-slot_id="0" data-width="300" data-height="250"></div>`+
			`<div data-slot_id="abc" data-width="300" data-height="250"></div>`+
			`<div data-slot_id="5" data-width="-1" data-height="250"></div>`)
	bids := &stubBidder{}
	eng := newTestEngine(t, testConfig(), device.Static{}, &stubGate{}, bids, &stubRenderer{})

	summary, err := eng.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Outcomes[models.OutcomeMisconfigured])
	assert.Equal(t, int32(0), bids.calls.Load())

	for _, ph := range doc.Placeholders() {
		content := ph.Content()
		require.NotNil(t, content)
		assert.Equal(t, "slot-error", content.Attr("class"))
	}
}

func TestRun_IdentityRejectionAbortsBeforeAnySlot(t *testing.T) {
	doc := parseDoc(t, placeholderHTML(1)+placeholderHTML(2))
	bids := &stubBidder{}
	gate := &stubGate{err: models.ErrIdentityRejected}
	eng := newTestEngine(t, testConfig(), device.Static{}, gate, bids, &stubRenderer{})

	_, err := eng.Run(context.Background(), doc)
	assert.True(t, errors.Is(err, models.ErrIdentityRejected))
	assert.Equal(t, int32(0), bids.calls.Load())
	for _, ph := range doc.Placeholders() {
		assert.Nil(t, ph.Content())
	}
}

func TestRun_PerRequestPolicySkipsGate(t *testing.T) {
	doc := parseDoc(t, placeholderHTML(1))
	cfg := testConfig()
	cfg.IdentityPolicy = config.IdentityPolicyPerRequest
	gate := &stubGate{err: models.ErrIdentityRejected}
	eng := newTestEngine(t, cfg, device.Static{}, gate, &stubBidder{}, &stubRenderer{})

	summary, err := eng.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int32(0), gate.calls.Load())
	assert.Equal(t, 1, summary.Rendered)
}

func TestRun_ContextBackoffEventuallyReady(t *testing.T) {
	doc := parseDoc(t, placeholderHTML(1))
	provider := &slowProvider{readyAfter: 3}
	eng := newTestEngine(t, testConfig(), provider, &stubGate{}, &stubBidder{}, &stubRenderer{})

	summary, err := eng.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rendered)
}

func TestRun_ContextNeverReadyIsFatal(t *testing.T) {
	doc := parseDoc(t, placeholderHTML(1))
	provider := &slowProvider{readyAfter: -1}
	bids := &stubBidder{}
	eng := newTestEngine(t, testConfig(), provider, &stubGate{}, bids, &stubRenderer{})

	_, err := eng.Run(context.Background(), doc)
	assert.True(t, errors.Is(err, models.ErrConfigUnavailable))
	// Bounded polling: the initial check plus one per backoff attempt.
	assert.Equal(t, int32(6), provider.polls.Load())
	// No slot was touched.
	assert.Equal(t, int32(0), bids.calls.Load())
	assert.Nil(t, doc.Placeholders()[0].Content())
}

func TestRun_InvalidCreativeSettlesSlot(t *testing.T) {
	doc := parseDoc(t, placeholderHTML(1))
	eng := newTestEngine(t, testConfig(), device.Static{}, &stubGate{},
		&stubBidder{}, &stubRenderer{err: models.ErrInvalidCreative})

	summary, err := eng.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeInvalid])
	assert.Equal(t, "slot-error", doc.Placeholders()[0].Content().Attr("class"))
}
