// Package storeapi talks to the shop's WordPress plugin, which decides
// whether and what to answer to a missed call.
package storeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 15 * time.Second

	apiKeyHeader = "X-API-Key"

	outboundMessagePath = "/wp-json/tm-pdv/v1/whatsapp-message"
	storeStatusPath     = "/wp-json/tm-pdv/v1/store-status"
)

// Endpoint identifies the remote store. It is read from settings on every
// call so edits apply immediately.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewClient(logger *zap.Logger) *Client {
	client := resty.New()
	client.SetTimeout(defaultTimeout)

	return NewClientWithResty(client, logger)
}

func NewClientWithResty(client *resty.Client, logger *zap.Logger) *Client {
	if client == nil {
		client = resty.New()
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}
	client.SetRetryCount(0)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Client) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// FetchOutboundMessage asks the store whether to answer and with what text.
func (c *Client) FetchOutboundMessage(ctx context.Context, endpoint Endpoint) (*domain.RemoteStatusMessage, error) {
	var out domain.RemoteStatusMessage
	if err := c.get(ctx, endpoint, outboundMessagePath, "whatsapp-message", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchStoreStatus returns the full opening status of the store.
func (c *Client) FetchStoreStatus(ctx context.Context, endpoint Endpoint) (*domain.StoreStatus, error) {
	var out domain.StoreStatus
	if err := c.get(ctx, endpoint, storeStatusPath, "store-status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestConnection reports whether the store status endpoint answers with a
// usable payload.
func (c *Client) TestConnection(ctx context.Context, endpoint Endpoint) bool {
	_, err := c.FetchStoreStatus(ctx, endpoint)
	if err != nil {
		c.logger.Info("store api connection test failed",
			zap.String("baseUrl", endpoint.BaseURL),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *Client) get(ctx context.Context, endpoint Endpoint, path string, label string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	base := domain.NormalizeEndpointURL(endpoint.BaseURL)
	if base == "" {
		return &APIError{Message: "store endpoint is not configured", Cause: domain.ErrNotConfigured}
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(endpoint.APIKey); key != "" {
		req.SetHeader(apiKeyHeader, key)
	}

	start := c.now()
	response, err := req.Get(base + path)
	c.metrics.ObserveStoreAPIDuration(label, c.now().Sub(start))
	if err != nil {
		return &APIError{Message: "request failed", Cause: err}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &APIError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("server error: %d", statusCode),
		}
	}

	body := strings.TrimSpace(string(response.Body()))
	if body == "" || body == "null" {
		return &APIError{StatusCode: statusCode, Message: "empty response"}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &APIError{StatusCode: statusCode, Message: "malformed response", Cause: err}
	}

	c.logger.Debug("store api call succeeded",
		zap.String("endpoint", label),
		zap.Int("status", statusCode),
	)
	return nil
}
