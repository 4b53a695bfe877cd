// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package stripe holds the outbound payment processor client. The processor's
// ledger and checkout flow live upstream; this client only writes back the
// few fields the webhook reactor owns.
package stripe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/classloop/community-video-service/internal/domain"
)

const (
	// BaseURL is the base URL for the payment processor API
	BaseURL = "https://api.stripe.com/v1"
	// DefaultClientTimeout is the default HTTP client timeout
	DefaultClientTimeout = 10 * time.Second
)

// Config holds the configuration for the processor client
type Config struct {
	APIKey string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
}

// Client pushes updates to the payment processor API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Ensure that Client implements domain.PaymentProcessor
var _ domain.PaymentProcessor = (*Client)(nil)

// NewClient creates a new processor API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

// UpdateSubscriptionFee pushes a recomputed platform fee percentage onto a
// subscription. The processor applies it from the next invoice onward.
func (c *Client) UpdateSubscriptionFee(ctx context.Context, subscriptionID string, feePercent float64) error {
	form := url.Values{}
	form.Set("application_fee_percent", strconv.FormatFloat(feePercent, 'f', -1, 64))

	endpoint := c.config.BaseURL + "/subscriptions/" + url.PathEscape(subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update subscription fee: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("processor rejected fee update (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// NoopProcessor satisfies PaymentProcessor when no processor API key is
// configured; fee pushes are logged and dropped.
type NoopProcessor struct{}

// Ensure that NoopProcessor implements domain.PaymentProcessor
var _ domain.PaymentProcessor = (*NoopProcessor)(nil)

func (p *NoopProcessor) UpdateSubscriptionFee(ctx context.Context, subscriptionID string, feePercent float64) error {
	slog.InfoContext(ctx, "processor API not configured, skipping fee update",
		"subscription_id", subscriptionID,
		"fee_percent", feePercent,
	)
	return nil
}
