package cex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/gateway"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

func testDeps() sources.Deps {
	return sources.Deps{
		Gateway: gateway.New(logging.NewNoopLogger()),
		Logger:  logging.NewNoopLogger(),
	}
}

func newTestSource(t *testing.T, factory sources.Factory, apiURL string) sources.Source {
	t.Helper()
	src, err := factory(testDeps(), map[string]interface{}{"api_url": apiURL})
	require.NoError(t, err)
	return src
}

func TestBinanceSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{
			"symbol": "BTCUSDT",
			"lastPrice": "65000.10",
			"priceChangePercent": "2.5",
			"quoteVolume": "123456789.0"
		}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewBinanceSource, server.URL)
	quote, err := src.Fetch(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, "binance", quote.Source)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(65000.10)))
	require.True(t, quote.Change24h.Valid)
	assert.True(t, quote.Change24h.Decimal.Equal(decimal.NewFromFloat(2.5)))
	require.True(t, quote.Volume24h.Valid)
}

func TestBinanceSource_UnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewBinanceSource, server.URL)
	_, err := src.Fetch(context.Background(), "NOPE")
	assert.True(t, feed.IsNotSupported(err))
}

func TestBinanceSource_NonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"XUSDT","lastPrice":"0.0"}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewBinanceSource, server.URL)
	_, err := src.Fetch(context.Background(), "X")
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrProvider)
}

func TestBinanceSource_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	src := newTestSource(t, NewBinanceSource, server.URL)
	_, err := src.Fetch(context.Background(), "BTC")
	assert.True(t, feed.IsTransient(err))
}

func TestBinanceSource_QuoteOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ETHUSDC", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDC","lastPrice":"3400"}`))
	}))
	defer server.Close()

	src, err := NewBinanceSource(testDeps(), map[string]interface{}{
		"api_url": server.URL,
		"quote":   "USDC",
	})
	require.NoError(t, err)

	quote, err := src.Fetch(context.Background(), "ETH")
	require.NoError(t, err)
	assert.False(t, quote.Change24h.Valid)
	assert.False(t, quote.Volume24h.Valid)
}
