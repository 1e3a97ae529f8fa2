// Package httpclient provides the resilient HTTP client every remote
// call goes through: range source fetches and policy store requests
// both share its retry and backoff behavior.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nancarrowm/rangesync/internal/brand"
	"github.com/nancarrowm/rangesync/internal/logging"
)

// RequestError carries the context of a failed request after all
// retry attempts were exhausted.
type RequestError struct {
	Method     string
	URL        string
	Attempts   int
	LastStatus int
	Err        error
}

func (e *RequestError) Error() string {
	if e.LastStatus > 0 {
		return fmt.Sprintf("%s %s failed after %d attempt(s): status %d: %v",
			e.Method, e.URL, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v",
		e.Method, e.URL, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Response is the decoded outcome of a successful request.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client wraps http.Client with retry, backoff and structured logging.
type Client struct {
	httpClient *http.Client
	retry      RetryConfig
	logger     *logging.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client with the given options.
func New(logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig(),
		logger:     logger.WithComponent("http"),
		userAgent:  brand.UserAgent(brand.Version),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Only errors Do wraps as temporary may retry; anything else
	// (4xx responses included) fails fast.
	if len(c.retry.RetryableErrors) == 0 {
		c.retry.RetryableErrors = []error{ErrTemporary}
	}
	return c
}

// Do performs an HTTP request with retries. Transport errors and 5xx
// or 429 responses are retried with backoff; other non-2xx responses
// fail immediately. The returned error is always a *RequestError on
// failure.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	var (
		attempts   int
		lastStatus int
	)

	result, err := RetryWithResult(ctx, c.retry, func() (*Response, error) {
		attempts++

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("request attempt failed",
				"method", method, "url", url, "attempt", attempts, "error", err)
			return nil, WrapTemporary(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, WrapTemporary(fmt.Errorf("reading response body: %w", err))
		}

		lastStatus = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Response{
				StatusCode: resp.StatusCode,
				Body:       respBody,
				Header:     resp.Header,
			}, nil
		}

		statusErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Debug("retryable status, backing off",
				"method", method, "url", url, "status", resp.StatusCode, "attempt", attempts)
			return nil, WrapTemporary(statusErr)
		}
		return nil, statusErr
	})

	if err != nil {
		return nil, &RequestError{
			Method:     method,
			URL:        url,
			Attempts:   attempts,
			LastStatus: lastStatus,
			Err:        err,
		}
	}
	return result, nil
}

// Get performs a GET request and returns the response body. Satisfies
// the aggregator's Fetcher interface.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
