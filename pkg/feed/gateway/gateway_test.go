package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"price":"1.23"}`))
	}))
	defer server.Close()

	c := New(logging.NewNoopLogger())
	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"price":"1.23"}`, string(resp.Body))
}

func TestClient_Get_NonOKPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"msg":"symbol not found"}`))
	}))
	defer server.Close()

	c := New(logging.NewNoopLogger())
	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClient_Get_RateLimitMarksDomain(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(logging.NewNoopLogger(), WithRetries(0, time.Millisecond))

	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, feed.IsRateLimited(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	// The domain is under backoff now, so no further request goes out.
	_, err = c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, feed.IsRateLimited(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClient_Get_RetriesRateLimitedThenSucceeds(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			// No Retry-After header: default window applies, but the
			// retry loop still gets its shot within this call.
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := New(logging.NewNoopLogger(), WithRetries(2, time.Millisecond))
	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_Get_TransientOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // Closed immediately so dialing fails.

	c := New(logging.NewNoopLogger(), WithRetries(0, time.Millisecond))
	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, feed.IsTransient(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, defaultRetryAfter, parseRetryAfter(""))
	assert.Equal(t, defaultRetryAfter, parseRetryAfter("soon"))
	assert.Equal(t, defaultRetryAfter, parseRetryAfter("-5"))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "api.binance.com", domainOf("https://api.binance.com/api/v3/ticker"))
	assert.Equal(t, "example.com:8080", domainOf("http://example.com:8080/x"))
	assert.Equal(t, "bare-host", domainOf("bare-host/path"))
}
