// Package bridge drives the handset through its companion agent: intent
// launches, native SMS, notifications and the accessibility tree.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/automation"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// ErrPackageNotFound is returned when the handset cannot resolve the target
// app of an intent.
var ErrPackageNotFound = errors.New("package not found")

type LaunchRequest struct {
	URL     string `json:"url"`
	Package string `json:"package"`
}

type SMSRequest struct {
	To      string   `json:"to"`
	Parts   []string `json:"parts"`
	SIMSlot int      `json:"simSlot"`
}

type Notification struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type clickResponse struct {
	Performed bool `json:"performed"`
}

// Error is a non-2xx answer from the agent.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return fmt.Sprintf("bridge returned status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("bridge returned status %d", e.StatusCode)
}

type Client struct {
	client *resty.Client
	logger *zap.Logger
}

var _ automation.Host = (*Client)(nil)

func NewClient(baseURL string, token string, logger *zap.Logger) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultTimeout)

	return NewClientWithResty(baseURL, token, client, logger)
}

func NewClientWithResty(baseURL string, token string, client *resty.Client, logger *zap.Logger) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("bridge base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid bridge base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}
	client.SetRetryCount(0)
	client.SetBaseURL(trimmed)
	client.SetHeader("Accept", "application/json")
	if t := strings.TrimSpace(token); t != "" {
		client.SetAuthToken(t)
	}

	return &Client{client: client, logger: logger}, nil
}

// Launch opens url in pkg on the handset.
func (c *Client) Launch(ctx context.Context, req LaunchRequest) error {
	resp, err := c.request(ctx).SetBody(req).Post("/intents")
	if err != nil {
		return fmt.Errorf("launch intent: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return fmt.Errorf("launch %s: %w", req.Package, ErrPackageNotFound)
	}
	return checkStatus(resp)
}

// SendSMS sends all parts as one multipart message.
func (c *Client) SendSMS(ctx context.Context, req SMSRequest) error {
	resp, err := c.request(ctx).SetBody(req).Post("/sms")
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return checkStatus(resp)
}

func (c *Client) Notify(ctx context.Context, n Notification) error {
	resp, err := c.request(ctx).SetBody(n).Post("/notifications")
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	return checkStatus(resp)
}

func (c *Client) ActiveRoot(ctx context.Context) (*automation.Node, error) {
	var root automation.Node
	resp, err := c.request(ctx).
		ForceContentType("application/json").
		SetResult(&root).
		Get("/accessibility/root")
	if err != nil {
		return nil, fmt.Errorf("fetch active root: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return &root, nil
}

func (c *Client) Click(ctx context.Context, nodeID string) (bool, error) {
	var out clickResponse
	resp, err := c.request(ctx).
		SetPathParam("id", nodeID).
		ForceContentType("application/json").
		SetResult(&out).
		Post("/accessibility/nodes/{id}/click")
	if err != nil {
		return false, fmt.Errorf("click node %s: %w", nodeID, err)
	}
	if err := checkStatus(resp); err != nil {
		return false, err
	}
	return out.Performed, nil
}

func (c *Client) GlobalHome(ctx context.Context) error {
	resp, err := c.request(ctx).Post("/accessibility/global/home")
	if err != nil {
		return fmt.Errorf("global home: %w", err)
	}
	return checkStatus(resp)
}

// Ping checks that the agent is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.request(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("ping bridge: %w", err)
	}
	return checkStatus(resp)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.client.R().SetContext(ctx)
}

func checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}
	return &Error{StatusCode: code, Message: strings.TrimSpace(resp.String())}
}
