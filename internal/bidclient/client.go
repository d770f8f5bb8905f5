package bidclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// Client speaks the bid-decision protocol: exactly one outbound POST per
// slot per pipeline run, bounded by the configured timeout, never retried.
type Client struct {
	decisionURL string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	metrics     observability.MetricsRegistry
}

// NewClient creates a bid client against the given decision endpoint.
func NewClient(decisionURL string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	return &Client{
		decisionURL: decisionURL,
		timeout:     timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// RequestBid sends the bid request for one slot and parses the decision.
// Failures map onto the slot error taxonomy: models.ErrBidTimeout when no
// response arrives within the window, models.ErrBidNetwork for transport
// failures and non-2xx statuses. Either way the outcome is terminal for the
// slot; the caller does not retry.
func (c *Client) RequestBid(ctx context.Context, slot models.Slot, device models.DeviceContext, pid string) (*models.BidResponse, error) {
	logger := middleware.LoggerFromContext(ctx, c.logger)
	start := time.Now()
	result := "ok"
	defer func() {
		c.metrics.RecordBidLatency(result, time.Since(start))
	}()

	body, err := json.Marshal(models.NewBidRequest(slot, device, pid))
	if err != nil {
		result = "error"
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrBidNetwork, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.decisionURL, bytes.NewReader(body))
	if err != nil {
		result = "error"
		return nil, fmt.Errorf("%w: build request: %v", models.ErrBidNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			result = "timeout"
			return nil, fmt.Errorf("%w: slot %d after %s", models.ErrBidTimeout, slot.ID, c.timeout)
		}
		result = "error"
		return nil, fmt.Errorf("%w: slot %d: %v", models.ErrBidNetwork, slot.ID, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result = "error"
		return nil, fmt.Errorf("%w: slot %d: http %d", models.ErrBidNetwork, slot.ID, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		result = "error"
		return nil, fmt.Errorf("%w: read body: %v", models.ErrBidNetwork, err)
	}

	var decision models.BidResponse
	if err := json.Unmarshal(raw, &decision); err != nil {
		result = "error"
		return nil, fmt.Errorf("%w: parse json: %v", models.ErrInvalidCreative, err)
	}

	logger.Debug("bid received",
		zap.Int("slot_id", slot.ID),
		zap.String("ad_type", decision.AdType),
		zap.Duration("latency", time.Since(start)))

	return &decision, nil
}
