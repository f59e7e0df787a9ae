package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

func TestProxyPool_AcquireEmpty(t *testing.T) {
	pool := NewProxyPool(nil, "", logging.NewNoopLogger())
	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoProxiesConfigured)
}

func TestProxyPool_AcquireValidatesCandidate(t *testing.T) {
	// The test server plays the proxy: any request it sees, including the
	// forwarded health check, gets a 200.
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	pool := NewProxyPool([]string{proxy.URL}, "http://health.invalid/ping", logging.NewNoopLogger())

	got, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, proxy.URL, got)

	valid, failed, untested := pool.Counts()
	assert.Equal(t, 1, valid)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, untested)

	// Validated proxies are reused without another health check.
	got, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, proxy.URL, got)
}

func TestProxyPool_FailedValidationIsPermanent(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer proxy.Close()

	pool := NewProxyPool([]string{proxy.URL}, "http://health.invalid/ping", logging.NewNoopLogger())

	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoValidProxies)

	// The candidate is now on the failed set and never retried.
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoValidProxies)

	_, failed, untested := pool.Counts()
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, untested)
}

func TestProxyPool_MarkFailedEvicts(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	pool := NewProxyPool([]string{proxy.URL}, "http://health.invalid/ping", logging.NewNoopLogger())

	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.MarkFailed(proxy.URL)
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoValidProxies)
}
