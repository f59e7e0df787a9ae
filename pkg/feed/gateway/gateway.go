package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
	"github.com/purr/LiveCryptoPrice/pkg/version"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryAfter = 60 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 1 * time.Second
)

// Response is the raw outcome of a successful dispatch. Rate-limit responses
// never reach callers; the gateway converts them into feed.ErrRateLimited.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the shared HTTP dispatch layer. It remembers which domains are
// under rate-limit backoff and short-circuits calls to them, retries
// rate-limited requests with linearly increasing delays, and optionally
// escalates to a rotating proxy pool.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  *logging.Logger

	mu           sync.Mutex
	limitedUntil map[string]time.Time

	proxies          *ProxyPool
	maxRetries       int
	retryDelay       time.Duration
	maxProxyAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.http.Timeout = d
	}
}

// WithProxyPool enables proxy escalation for rate-limited domains.
func WithProxyPool(pool *ProxyPool, maxAttempts int) Option {
	return func(c *Client) {
		c.proxies = pool
		if maxAttempts > 0 {
			c.maxProxyAttempts = maxAttempts
		}
	}
}

// WithRetries sets the direct retry budget and base backoff delay.
func WithRetries(max int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryDelay = delay
	}
}

// New creates a gateway client.
func New(logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		http:             &http.Client{Timeout: defaultTimeout},
		timeout:          defaultTimeout,
		logger:           logger,
		limitedUntil:     make(map[string]time.Time),
		maxRetries:       defaultMaxRetries,
		retryDelay:       defaultRetryDelay,
		maxProxyAttempts: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a URL. On HTTP 429 the domain is marked unavailable until the
// Retry-After window (default 60s) expires, the call is retried with linear
// backoff, and finally escalated to the proxy pool if one is configured.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	domain := domainOf(rawURL)
	if until, limited := c.rateLimitedUntil(domain); limited {
		return nil, fmt.Errorf("%w: %s until %s", feed.ErrRateLimited, domain, until.Format(time.RFC3339))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return nil, fmt.Errorf("%w: %v", feed.ErrTransient, err)
			}
		}

		resp, err := c.do(ctx, rawURL, nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !feed.IsRateLimited(err) {
			return nil, err
		}
		c.logger.Warn("Rate limited, retrying",
			"domain", domain, "attempt", attempt+1, "max", c.maxRetries+1)
	}

	if c.proxies != nil {
		resp, err := c.getViaProxies(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// GetJSON fetches a URL and decodes the body into v. Status codes outside
// 2xx are returned to the caller for venue-specific classification.
func (c *Client) GetJSON(ctx context.Context, rawURL string, decode func([]byte) error) (*Response, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if decode != nil && resp.StatusCode == http.StatusOK {
		if err := decode(resp.Body); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", feed.ErrTransient, domainOf(rawURL), err)
		}
	}
	return resp, nil
}

// getViaProxies retries a rate-limited request through validated proxies.
// Each proxy gets its own bounded retry budget; total attempts are capped.
func (c *Client) getViaProxies(ctx context.Context, rawURL string) (*Response, error) {
	tried := make(map[string]bool)

	for attempt := 0; attempt < c.maxProxyAttempts; attempt++ {
		proxy, err := c.proxies.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if tried[proxy] {
			continue
		}
		tried[proxy] = true

		for retry := 0; retry <= c.maxRetries; retry++ {
			if retry > 0 {
				if err := sleepCtx(ctx, c.retryDelay*time.Duration(retry)); err != nil {
					return nil, fmt.Errorf("%w: %v", feed.ErrTransient, err)
				}
			}

			resp, err := c.do(ctx, rawURL, &proxy)
			if err == nil {
				c.logger.Info("Request succeeded via proxy", "proxy", proxy)
				return resp, nil
			}
			if feed.IsRateLimited(err) {
				continue
			}
			// A proxy that errors during use is evicted for good.
			c.proxies.MarkFailed(proxy)
			c.logger.Warn("Proxy failed during use, evicting", "proxy", proxy, "error", err)
			break
		}
	}

	if len(tried) == 0 {
		return nil, fmt.Errorf("%w: %v", feed.ErrRateLimited, ErrNoValidProxies)
	}
	return nil, fmt.Errorf("%w: %v (%d proxies)", feed.ErrRateLimited, ErrAllProxiesFailed, len(tried))
}

// do performs a single GET, optionally through a proxy, and classifies
// transport-level failures.
func (c *Client) do(ctx context.Context, rawURL string, proxy *string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", feed.ErrTransient, err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	req.Header.Set("Accept", "application/json")

	client := c.http
	if proxy != nil {
		proxyURL, err := url.Parse(*proxy)
		if err != nil {
			return nil, fmt.Errorf("%w: proxy url: %v", feed.ErrTransient, err)
		}
		client = &http.Client{
			Timeout:   c.timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", feed.ErrTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.markRateLimited(domainOf(rawURL), retryAfter)
		return nil, fmt.Errorf("%w: %s for %s", feed.ErrRateLimited, domainOf(rawURL), retryAfter)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// rateLimitedUntil reports whether a domain is under backoff, clearing
// expired windows as a side effect.
func (c *Client) rateLimitedUntil(domain string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.limitedUntil[domain]
	if !ok {
		return time.Time{}, false
	}
	if time.Now().After(until) {
		delete(c.limitedUntil, domain)
		metrics.RecordRateLimitedDomains(len(c.limitedUntil))
		return time.Time{}, false
	}
	return until, true
}

func (c *Client) markRateLimited(domain string, retryAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limitedUntil[domain] = time.Now().Add(retryAfter)
	metrics.RecordRateLimitedDomains(len(c.limitedUntil))
	c.logger.Warn("Domain rate limited", "domain", domain, "retry_after", retryAfter)
}

// parseRetryAfter interprets a Retry-After header value in seconds, falling
// back to the default window for absent or date-formatted values.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// domainOf extracts the host part of a URL for rate-limit tracking.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Host != "" {
		return u.Host
	}
	// Fall back to a crude split for malformed input.
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
