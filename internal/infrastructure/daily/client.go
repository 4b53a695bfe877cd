// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package daily is a thin client for the Daily.co-style room provider REST
// API: create room, mint meeting token, delete room.
package daily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/classloop/community-video-service/internal/domain"
	"github.com/classloop/community-video-service/internal/logging"
)

const (
	// BaseURL is the base URL for the room provider API
	BaseURL = "https://api.daily.co/v1"
	// DefaultClientTimeout is the default HTTP client timeout for provider requests
	DefaultClientTimeout = 10 * time.Second
	// Default retry configuration: transient failures get two additional
	// attempts with linearly increasing backoff (1s, 2s).
	DefaultMaxRetries     = 2
	DefaultInitialBackoff = 1 * time.Second
)

// Config holds the configuration for the provider client
type Config struct {
	APIKey string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client talks to the room provider API with bearer-token auth and retries.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Ensure that Client implements domain.RoomProvider
var _ domain.RoomProvider = (*Client)(nil)

// NewClient creates a new provider API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}

	// Static bearer token via the oauth2 transport; the provider issues
	// long-lived API keys rather than an OAuth flow.
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.APIKey})

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &oauth2.Transport{
				Base:   http.DefaultTransport,
				Source: source,
			},
		},
		config: config,
	}
}

// shouldRetry determines if an error or HTTP status code is transient.
// Network errors, 5xx and rate limits are retried; other 4xx are not.
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		// Network/connection errors, including client timeouts.
		return true
	}

	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	return statusCode == http.StatusTooManyRequests
}

// backoffFor returns the delay before retry attempt n (0-based): the backoff
// grows linearly, 1s then 2s with defaults, per the provider contract.
func (c *Client) backoffFor(attempt int) time.Duration {
	return c.config.InitialBackoff * time.Duration(attempt+1)
}

// doRequest performs an authenticated HTTP request with retry on transient
// failures. The returned response body is fully read into memory so retries
// never hold open connections.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	url := c.config.BaseURL + path
	var lastErr error
	var lastStatus int
	var lastBody []byte

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err == nil {
			respBody, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				err = readErr
			} else {
				lastStatus, lastBody, lastErr = resp.StatusCode, respBody, nil
				if !shouldRetry(resp.StatusCode, nil) {
					slog.DebugContext(ctx, "provider API request completed",
						"method", method,
						"path", path,
						"status", resp.StatusCode,
						"duration", duration.String(),
						"attempt", attempt+1,
					)
					return resp.StatusCode, respBody, nil
				}
			}
		}
		if err != nil {
			lastErr = err
			lastStatus, lastBody = 0, nil
			if !shouldRetry(0, err) {
				slog.ErrorContext(ctx, "provider API request failed (not retryable)",
					"method", method,
					"path", path,
					"duration", duration.String(),
					"attempt", attempt+1,
					logging.ErrKey, err,
				)
				return 0, nil, err
			}
		}

		if attempt < c.config.MaxRetries {
			backoff := c.backoffFor(attempt)
			slog.WarnContext(ctx, "provider API request failed, retrying",
				"method", method,
				"path", path,
				"status", lastStatus,
				"duration", duration.String(),
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff.String(),
				logging.ErrKey, lastErr,
			)
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if lastErr != nil {
		slog.ErrorContext(ctx, "provider API request failed after all retries",
			"method", method,
			"path", path,
			"max_retries", c.config.MaxRetries,
			logging.ErrKey, lastErr,
			logging.PriorityCritical(),
		)
		return 0, nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
	}

	slog.ErrorContext(ctx, "provider API error response after all retries",
		"method", method,
		"path", path,
		"status", lastStatus,
		"body", string(lastBody),
		logging.PriorityCritical(),
	)
	return lastStatus, lastBody, nil
}

// providerError builds a ProviderError from a non-2xx response, attaching the
// provider's error payload when one is present.
func providerError(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
		Info  string `json:"info"`
	}
	payload := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Info != "" {
		payload = errResp.Info
	} else if err == nil && errResp.Error != "" {
		payload = errResp.Error
	}
	return &domain.ProviderError{StatusCode: statusCode, Payload: payload}
}
