package tagging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 8 << 20
	maxRetryAfter    = 30 * time.Second
)

var defaultBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// apiClient sends rate-limited requests to a scoring API and retries on 429 and 5xx.
type apiClient struct {
	name     string
	client   *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
}

func newAPIClient(name string, client *http.Client, limiter *rate.Limiter) *apiClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &apiClient{
		name:     name,
		client:   client,
		limiter:  limiter,
		backoffs: defaultBackoffs,
	}
}

// post sends body to url and returns the response body of the first successful attempt.
func (c *apiClient) post(ctx context.Context, url, contentType string, body []byte, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.backoffs); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := c.wait(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if err := c.wait(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return data, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s API error (status %d): %s", c.name, resp.StatusCode, string(data))
			if err := c.wait(ctx, attempt, retryAfter(resp)); err != nil {
				return nil, err
			}
			continue
		}

		return nil, fmt.Errorf("%s API error (status %d): %s", c.name, resp.StatusCode, string(data))
	}

	return nil, fmt.Errorf("%s API request failed after %d retries: %w", c.name, len(c.backoffs), lastErr)
}

// wait sleeps before the next attempt. Nothing is waited for after the last attempt.
func (c *apiClient) wait(ctx context.Context, attempt int, override time.Duration) error {
	if attempt >= len(c.backoffs) {
		return nil
	}
	delay := c.backoffs[attempt]
	if override > 0 {
		delay = override
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter)
}
