package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

// Client validates request-scoped identifiers against the remote identity
// service before slot processing begins.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

type checkResponse struct {
	Success bool `json:"success"`
}

// NewClient creates an identity client against the given endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Validate checks the PID with the identity service. An absent token, a
// transport failure, or a non-true result is a hard gate failure: the
// returned error wraps models.ErrIdentityRejected.
func (c *Client) Validate(ctx context.Context, pid string) error {
	if pid == "" {
		c.metrics.IncrementIdentityChecks("missing")
		return fmt.Errorf("%w: no pid supplied", models.ErrIdentityRejected)
	}

	u := c.baseURL + "?pid=" + url.QueryEscape(pid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.metrics.IncrementIdentityChecks("error")
		return fmt.Errorf("%w: build request: %v", models.ErrIdentityRejected, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrementIdentityChecks("error")
		return fmt.Errorf("%w: %v", models.ErrIdentityRejected, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && c.logger != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.metrics.IncrementIdentityChecks("error")
		return fmt.Errorf("%w: http %d", models.ErrIdentityRejected, resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.IncrementIdentityChecks("error")
		return fmt.Errorf("%w: decode response: %v", models.ErrIdentityRejected, err)
	}
	if !out.Success {
		c.metrics.IncrementIdentityChecks("rejected")
		return fmt.Errorf("%w: pid not accepted", models.ErrIdentityRejected)
	}

	c.metrics.IncrementIdentityChecks("accepted")
	return nil
}
