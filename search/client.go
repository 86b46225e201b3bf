package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/digestai/digestai/graph"
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// DefaultRetryPolicy retries rate limiting and transient upstream failures.
var DefaultRetryPolicy = &graph.RetryPolicy{
	MaxRetries:      2,
	BackoffStrategy: graph.ExponentialBackoff,
	RetryableErrors: []string{"status 429", "status 502", "status 503", "status 504", "connection reset"},
	BaseDelay:       500 * time.Millisecond,
	MaxDelay:        4 * time.Second,
}

type client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
	retry      *graph.RetryPolicy
	userAgent  string
}

// Option configures a provider client.
type Option func(*client)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithMaxResults sets the number of documents requested (1-50).
func WithMaxResults(n int) Option {
	return func(c *client) {
		if n < 1 {
			n = 1
		}
		if n > 50 {
			n = 50
		}
		c.maxResults = n
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy retries failed requests according to policy. A nil
// policy disables retries.
func WithRetryPolicy(policy *graph.RetryPolicy) Option {
	return func(c *client) {
		c.retry = policy
	}
}

func newClient(apiKey, envKey, baseURL string, maxResults int, opts []Option) (client, error) {
	if apiKey == "" && envKey != "" {
		apiKey = os.Getenv(envKey)
	}
	c := client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		httpClient: http.DefaultClient,
		retry:      DefaultRetryPolicy,
		userAgent:  "digestai/1.0 (+https://github.com/digestai/digestai)",
	}
	for _, opt := range opts {
		opt(&c)
	}
	if envKey != "" && c.apiKey == "" {
		return c, fmt.Errorf("%s not set", envKey)
	}
	return c, nil
}

// do sends the request built by newReq and decodes a JSON body into out.
// newReq is called once per attempt so bodies can be replayed.
func (c *client) do(ctx context.Context, provider string, newReq func(ctx context.Context) (*http.Request, error), out any) error {
	_, err := graph.Retry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		req, err := newReq(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return struct{}{}, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("failed to decode %s response: %w", provider, err)
		}
		return struct{}{}, nil
	})
	return err
}
