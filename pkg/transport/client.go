package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseBytes bounds how much of a response body is read into memory
const maxResponseBytes = 4 << 20

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// NextBackoff returns the delay to wait after current, capped at MaxBackoff
func (r RetryConfig) NextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.BackoffMultiple)
	if next > r.MaxBackoff {
		next = r.MaxBackoff
	}
	return next
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = DefaultRetryConfig.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = DefaultRetryConfig.MaxBackoff
	}
	if r.BackoffMultiple < 1 {
		r.BackoffMultiple = DefaultRetryConfig.BackoffMultiple
	}
	return r
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Config struct {
	HTTPClient *http.Client
	Retry      RetryConfig

	// RequestsPerSecond limits outbound requests. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	Logger *zap.Logger
}

// Client sends JSON requests to the ledger node. It only retries requests that produced no
// response at all; any HTTP status, including 5xx, is returned to the caller as is.
type Client struct {
	httpClient  *http.Client
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new transport client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second cannot be negative")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient:  httpClient,
		retryConfig: cfg.Retry.withDefaults(),
		limiter:     limiter,
		logger:      cfg.Logger,
	}, nil
}

func (c *Client) RetryConfig() RetryConfig {
	return c.retryConfig
}

// Do performs a single request. A nil error means a response was received, whatever its status.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// DoWithRetry performs the request, retrying with exponential backoff while no response is received.
// The last transport error is returned once every attempt failed or ctx is done.
func (c *Client) DoWithRetry(ctx context.Context, method, url string, body []byte) (*Response, error) {
	backoff := c.retryConfig.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.Do(ctx, method, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.logger.Sugar().Debugw("Request failed, retrying",
			"method", method,
			"url", url,
			"attempt", attempt+1,
			"error", err,
		)

		if attempt < c.retryConfig.MaxAttempts-1 {
			if err := Sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = c.retryConfig.NextBackoff(backoff)
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
