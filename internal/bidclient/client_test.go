package bidclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

var testSlot = models.Slot{ID: 7, Width: 300, Height: 250}

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	return NewClient(url, timeout, zaptest.NewLogger(t), observability.NewNoOpRegistry())
}

func TestRequestBid_Success(t *testing.T) {
	var gotBody models.BidRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.BidResponse{
			AdType:       models.AdTypeBrand,
			FullFilePath: "https://cdn.example.com/ad.png",
			CreativeType: models.CreativeTypeImage,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	device := models.DeviceContext{UA: "agent", DeviceType: models.DeviceTypePhone}
	resp, err := c.RequestBid(context.Background(), testSlot, device, "pid-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdTypeBrand, resp.AdType)

	// The wire body carries the slot, the derived device block and the pid.
	assert.Equal(t, 7, gotBody.SlotID)
	assert.Equal(t, 1, gotBody.Device.JS)
	assert.Equal(t, int(models.DeviceTypePhone), gotBody.Device.DeviceType)
	assert.Equal(t, "pid-1", gotBody.PID)
}

func TestRequestBid_Non2xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	_, err := c.RequestBid(context.Background(), testSlot, models.DeviceContext{}, "")
	assert.True(t, errors.Is(err, models.ErrBidNetwork))
}

func TestRequestBid_TransportFailureIsNetworkError(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/bid", time.Second)
	_, err := c.RequestBid(context.Background(), testSlot, models.DeviceContext{}, "")
	assert.True(t, errors.Is(err, models.ErrBidNetwork))
}

func TestRequestBid_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, 50*time.Millisecond)
	_, err := c.RequestBid(context.Background(), testSlot, models.DeviceContext{}, "")
	assert.True(t, errors.Is(err, models.ErrBidTimeout))
}

func TestRequestBid_LogsThroughContextLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.BidResponse{AdType: models.AdTypeBrand})
	}))
	defer srv.Close()

	// The per-pipeline logger installed into context must carry the
	// client's log lines, not the injected fallback.
	core, logs := observer.New(zap.DebugLevel)
	ctx := middleware.WithLogger(context.Background(), zap.New(core))

	c := newTestClient(t, srv.URL, time.Second)
	_, err := c.RequestBid(ctx, testSlot, models.DeviceContext{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("bid received").Len())
}

func TestRequestBid_MalformedJSONIsInvalidCreative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	_, err := c.RequestBid(context.Background(), testSlot, models.DeviceContext{}, "")
	assert.True(t, errors.Is(err, models.ErrInvalidCreative))
}
