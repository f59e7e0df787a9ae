package cex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
)

func TestCoinGeckoSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{
			"bitcoin": {"usd": 65000.5, "usd_24h_vol": 28000000000, "usd_24h_change": -1.2}
		}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewCoinGeckoSource, server.URL)
	quote, err := src.Fetch(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, "coingecko", quote.Source)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(65000.5)))
	require.True(t, quote.Change24h.Valid)
	assert.True(t, quote.Change24h.Decimal.Equal(decimal.NewFromFloat(-1.2)))
	assert.True(t, quote.Volume24h.Valid)
}

func TestCoinGeckoSource_UnmappedTickerFailsFast(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	src := newTestSource(t, NewCoinGeckoSource, server.URL)
	_, err := src.Fetch(context.Background(), "OBSCURECOIN")
	assert.True(t, feed.IsNotSupported(err))
	// No network call for tickers without a coin id.
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestCoinGeckoSource_ExtraIDsFromConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pepe", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"pepe": {"usd": 0.0000123}}`))
	}))
	defer server.Close()

	src, err := NewCoinGeckoSource(testDeps(), map[string]interface{}{
		"api_url": server.URL,
		"ids":     map[string]interface{}{"pepe": "pepe"},
	})
	require.NoError(t, err)

	quote, err := src.Fetch(context.Background(), "PEPE")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(0.0000123)))
	assert.False(t, quote.Change24h.Valid)
}

func TestCoinGeckoSource_MissingCoinInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewCoinGeckoSource, server.URL)
	_, err := src.Fetch(context.Background(), "BTC")
	assert.True(t, feed.IsNotSupported(err))
}
