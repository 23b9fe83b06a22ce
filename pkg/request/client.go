// Package request is the outbound HTTP client used by routing adapters:
// response caching, bounded per-provider concurrency, retries with backoff.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tripsync/pkg/cache"
	"tripsync/pkg/tracker"
	"tripsync/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("tripsync/%s", version.Version)

// StatusError is returned for non-retryable HTTP status codes.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// ErrMaxRetries is returned when every attempt hit a retryable failure.
var ErrMaxRetries = errors.New("max retries exceeded")

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	Retries     int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	PerProvider int // concurrent requests allowed per host
}

// Client handles HTTP requests with caching, tracking and backoff.
type Client struct {
	httpClient *http.Client
	cache      cache.Cacher
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	retries    int
	perHost    int

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// New creates a new Client.
func New(c cache.Cacher, t *tracker.Tracker, opts Options) *Client {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.PerProvider < 1 {
		opts.PerProvider = 4
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      c,
		tracker:    t,
		backoff:    NewProviderBackoff(opts.BaseDelay, opts.MaxDelay),
		retries:    opts.Retries,
		perHost:    opts.PerProvider,
		slots:      make(map[string]chan struct{}),
	}
}

// PostJSON posts body and returns the response body. A non-empty cacheKey
// serves repeats from the cache.
func (c *Client) PostJSON(ctx context.Context, u string, body []byte, headers map[string]string, cacheKey string) ([]byte, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := parsed.Host

	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(provider)
			slog.Debug("Cache Hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(provider)
	}

	release, err := c.acquire(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := c.executeWithBackoff(ctx, provider, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", defaultUserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		c.tracker.TrackFailure(provider)
		return nil, err
	}
	c.tracker.TrackSuccess(provider)

	if cacheKey != "" && c.cache != nil {
		if err := c.cache.SetCache(ctx, cacheKey, resp); err != nil {
			slog.Error("Failed to cache response", "url", u, "error", err)
		}
	}
	return resp, nil
}

// acquire takes one of the provider's concurrency slots.
func (c *Client) acquire(ctx context.Context, provider string) (func(), error) {
	c.mu.Lock()
	sem, ok := c.slots[provider]
	if !ok {
		sem = make(chan struct{}, c.perHost)
		c.slots[provider] = sem
	}
	c.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// executeWithBackoff retries network errors, 429 and 5xx. Request bodies are
// single-use, so newReq builds a fresh request per attempt.
func (c *Client) executeWithBackoff(ctx context.Context, provider string, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if err := c.backoff.Wait(ctx, provider); err != nil {
			return nil, err
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Request failed, retrying", "provider", provider, "attempt", attempt+1, "error", err)
			c.backoff.RecordFailure(provider)
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if retryable(resp.StatusCode) {
			slog.Warn("API Backoff", "status", resp.StatusCode, "provider", provider, "attempt", attempt+1)
			c.backoff.RecordFailure(provider)
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
		}
		if readErr != nil {
			return nil, fmt.Errorf("read error: %w", readErr)
		}

		c.backoff.RecordSuccess(provider)
		return data, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
