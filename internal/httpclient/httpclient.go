// Package httpclient is a small JSON-over-HTTP client for embedding
// providers: Bearer auth, a base URL, and optional retries.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client posts JSON to a base URL.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries retries 429 and 5xx responses up to n times, waiting
// base, 2*base, 4*base... or the server's Retry-After. Off by default.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = base
	}
}

// New creates a Client. An empty token sends no Authorization header.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON marshals body, posts it to baseURL+path and decodes a 2xx
// response into dest, unless dest is nil. Non-2xx responses return *APIError.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr *APIError
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.delay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		apiErr, err := c.do(ctx, path, payload, dest)
		if err != nil {
			return err
		}
		if apiErr == nil {
			return nil
		}
		if apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500 {
			return apiErr
		}
		lastErr = apiErr
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, payload []byte, dest any) (*APIError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if dest == nil {
			return nil, nil
		}
		if err := json.Unmarshal(data, dest); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	}

	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		retryAfter: resp.Header.Get("Retry-After"),
	}, nil
}

func (c *Client) delay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.backoff << (attempt - 1)
}
