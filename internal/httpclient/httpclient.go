// Package httpclient wraps outbound HTTP calls in a shared timeout and retry policy.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound returns true if the error indicates a 404 Not Found response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Policy controls per-attempt timeouts and retries.
type Policy struct {
	Timeout      time.Duration // per attempt, 0 means no timeout
	MaxRetries   int           // additional attempts after the first
	RetryBackoff time.Duration // initial backoff interval
}

// DefaultPolicy is a 30s timeout with one retry after 500ms.
func DefaultPolicy() Policy {
	return Policy{Timeout: 30 * time.Second, MaxRetries: 1, RetryBackoff: 500 * time.Millisecond}
}

// Client executes requests under a Policy.
type Client struct {
	http   *http.Client
	policy Policy
	logger zerolog.Logger
}

// New creates a Client. A nil hc uses http.DefaultClient.
func New(hc *http.Client, policy Policy, logger zerolog.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc, policy: policy, logger: logger}
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request for each attempt so bodies can be replayed.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do runs build under the retry policy. Transport errors and 5xx responses are
// retried; 4xx responses and context cancellation are returned immediately.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	if c.policy.RetryBackoff > 0 {
		b.InitialInterval = c.policy.RetryBackoff
	}

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := c.attempt(ctx, build)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	maxRetries := max(c.policy.MaxRetries, 0)
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxRetries)+1), //nolint:gosec // clamped to non-negative above
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("request failed, retrying")
		}),
	)
}

// attempt performs a single request with the per-attempt timeout, reading the
// whole body before the timeout context is released.
func (c *Client) attempt(ctx context.Context, build RequestFunc) (*Response, error) {
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	req, err := build(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("could not create request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Get performs a GET with the given headers and returns the body.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		copyHeader(req.Header, header)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetJSON performs a GET request and unmarshals the JSON response into the result type.
func GetJSON[T any](ctx context.Context, c *Client, url string, header http.Header) (*T, error) {
	body, err := c.Get(ctx, url, header)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// readErrorBody reads the response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}
