package revenuecat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 64 << 10

// Client talks to the billing backend's v1 REST API.
// Every request carries the bearer credential supplied at construction.
// There is no retry: each call is a single attempt and failures surface to the caller.
type Client struct {
	client     *http.Client
	baseURL    *url.URL
	apiKey     string
	fetchToken string
	platform   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Useful for tests and proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://api.revenuecat.com/v1"
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    u,
		apiKey:     apiKey,
		fetchToken: cfg.FetchToken,
		platform:   cfg.Platform,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchToken returns the configured receipt token.
func (c *Client) FetchToken() string {
	return c.fetchToken
}

// Offerings fetches the current remote offerings for an app user.
func (c *Client) Offerings(ctx context.Context, appUserID string) (*OfferingsResponse, error) {
	if appUserID == "" {
		return nil, ErrMissingAppUserID
	}
	var out OfferingsResponse
	if err := c.do(ctx, http.MethodGet, "subscribers/"+url.PathEscape(appUserID)+"/offerings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostReceipt submits a purchase token and returns the updated subscriber.
// An empty FetchToken falls back to the configured token.
func (c *Client) PostReceipt(ctx context.Context, r Receipt) (*SubscriberResponse, error) {
	if r.AppUserID == "" {
		return nil, ErrMissingAppUserID
	}
	if r.ProductID == "" {
		return nil, ErrMissingProductID
	}
	if r.FetchToken == "" {
		r.FetchToken = c.fetchToken
	}
	var out SubscriberResponse
	if err := c.do(ctx, http.MethodPost, "receipts", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscriber fetches the subscriber record, including entitlements.
func (c *Client) Subscriber(ctx context.Context, appUserID string) (*SubscriberResponse, error) {
	if appUserID == "" {
		return nil, ErrMissingAppUserID
	}
	var out SubscriberResponse
	if err := c.do(ctx, http.MethodGet, "subscribers/"+url.PathEscape(appUserID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.platform != "" {
		req.Header.Set("X-Platform", c.platform)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		// Keep error bodies on one line for log safety
		msg := strings.ReplaceAll(strings.TrimSpace(string(raw)), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrDecodeResponse, err)
	}
	return nil
}
