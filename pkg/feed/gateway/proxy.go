package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
)

const (
	// DefaultHealthCheckURL is a lightweight endpoint used to validate
	// proxies before first use.
	DefaultHealthCheckURL = "https://api.coingecko.com/api/v3/ping"

	proxyTimeout         = 5 * time.Second
	maxValidationsPerUse = 5
)

// ProxyPool maintains candidate proxies for rate-limited calls. Unvalidated
// proxies are health-checked before first use; proxies that fail validation
// or error during use are remembered and never retried for the life of the
// process. Selection among known-good proxies is random to spread load.
type ProxyPool struct {
	healthURL string
	logger    *logging.Logger

	mu         sync.Mutex
	candidates []string
	valid      []string
	failed     map[string]bool
}

// NewProxyPool creates a pool from a candidate proxy URL list.
func NewProxyPool(proxies []string, healthURL string, logger *logging.Logger) *ProxyPool {
	if healthURL == "" {
		healthURL = DefaultHealthCheckURL
	}
	p := &ProxyPool{
		healthURL:  healthURL,
		logger:     logger,
		candidates: append([]string(nil), proxies...),
		failed:     make(map[string]bool),
	}
	p.recordCounts()
	return p
}

// Acquire returns a known-good proxy, validating untested candidates when
// none are available yet.
func (p *ProxyPool) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	if len(p.candidates) == 0 {
		p.mu.Unlock()
		return "", ErrNoProxiesConfigured
	}
	if len(p.valid) > 0 {
		proxy := p.valid[rand.Intn(len(p.valid))]
		p.mu.Unlock()
		return proxy, nil
	}
	untested := p.untestedLocked()
	p.mu.Unlock()

	if len(untested) == 0 {
		return "", ErrNoValidProxies
	}

	rand.Shuffle(len(untested), func(i, j int) {
		untested[i], untested[j] = untested[j], untested[i]
	})
	if len(untested) > maxValidationsPerUse {
		untested = untested[:maxValidationsPerUse]
	}

	for _, proxy := range untested {
		if p.validate(ctx, proxy) {
			p.mu.Lock()
			p.valid = append(p.valid, proxy)
			p.mu.Unlock()
			p.recordCounts()
			p.logger.Info("Validated proxy", "proxy", proxy)
			return proxy, nil
		}
	}

	return "", ErrNoValidProxies
}

// MarkFailed evicts a proxy from the known-good set permanently.
func (p *ProxyPool) MarkFailed(proxy string) {
	p.mu.Lock()
	p.failed[proxy] = true
	for i, v := range p.valid {
		if v == proxy {
			p.valid = append(p.valid[:i], p.valid[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.recordCounts()
}

// Counts returns pool membership by state.
func (p *ProxyPool) Counts() (valid, failed, untested int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.valid), len(p.failed), len(p.untestedLocked())
}

// validate issues a health-check request through the proxy. Failures put
// the proxy on the permanent failed set.
func (p *ProxyPool) validate(ctx context.Context, proxy string) bool {
	ok := func() bool {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return false
		}
		client := &http.Client{
			Timeout:   proxyTimeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}()

	if !ok {
		p.mu.Lock()
		p.failed[proxy] = true
		p.mu.Unlock()
		p.recordCounts()
		p.logger.Warn("Proxy failed validation", "proxy", proxy)
	}
	return ok
}

func (p *ProxyPool) untestedLocked() []string {
	validSet := make(map[string]bool, len(p.valid))
	for _, v := range p.valid {
		validSet[v] = true
	}
	var untested []string
	for _, c := range p.candidates {
		if !p.failed[c] && !validSet[c] {
			untested = append(untested, c)
		}
	}
	return untested
}

func (p *ProxyPool) recordCounts() {
	valid, failed, untested := p.Counts()
	metrics.RecordProxyPool(valid, failed, untested)
}

// String describes the pool state for logs.
func (p *ProxyPool) String() string {
	valid, failed, untested := p.Counts()
	return fmt.Sprintf("proxies(valid=%d failed=%d untested=%d)", valid, failed, untested)
}
