// Package httpretry provides an HTTP client with bounded exponential-backoff
// retry on transient failures.
package httpretry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Default retry parameters.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// defaultRetryableStatuses are the HTTP statuses retried by default.
var defaultRetryableStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Client issues HTTP requests with exponential backoff between retries.
// Delay before retry i (zero-based) is InitialDelay * 2^i, no jitter.
type Client struct {
	HTTPClient *http.Client
	Log        *slog.Logger

	MaxAttempts  int
	InitialDelay time.Duration
	// Retryable lists the response statuses worth retrying. Any other
	// status, success or not, is returned to the caller immediately.
	Retryable []int

	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Client with the default retry parameters.
func New(log *slog.Logger) *Client {
	return &Client{
		HTTPClient:   http.DefaultClient,
		Log:          log,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Retryable:    defaultRetryableStatuses,
	}
}

func (c *Client) retryable(status int) bool {
	for _, s := range c.Retryable {
		if s == status {
			return true
		}
	}
	return false
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do sends the request built by newRequest, retrying on network errors and
// retryable statuses. It performs at most MaxAttempts tries. The final
// attempt's response is returned even when its status is still retryable;
// a network failure on the final attempt surfaces the last error.
//
// newRequest is called once per attempt so request bodies can be re-read.
func (c *Client) Do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	initialDelay := c.InitialDelay
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			if !c.retryable(resp.StatusCode) || attempt == maxAttempts-1 {
				return resp, nil
			}

			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			// Drain so the connection can be reused before retrying.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		} else {
			lastErr = err
			if attempt == maxAttempts-1 {
				break
			}
		}

		delay := initialDelay << uint(attempt)
		if c.Log != nil {
			c.Log.WarnContext(ctx, "Request failed, retrying",
				"attempt", attempt+1, "max_attempts", maxAttempts, "delay", delay, "error", lastErr)
		}
		if err := c.wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// PostJSON posts body as JSON to url and decodes a 2xx response into out.
// Non-2xx responses (after retries are exhausted) are returned as an error
// carrying the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx response that was not (or no longer) worth
// retrying. Callers inspect Status to distinguish rate limiting from other
// failures.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}
