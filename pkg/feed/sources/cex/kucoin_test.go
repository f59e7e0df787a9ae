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
)

func TestKuCoinSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{
			"code": "200000",
			"data": {"symbol": "BTC-USDT", "last": "65000", "vol": "120.5", "changeRate": "0.025"}
		}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewKuCoinSource, server.URL)
	quote, err := src.Fetch(context.Background(), "BTC")
	require.NoError(t, err)

	assert.True(t, quote.Price.Equal(decimal.NewFromInt(65000)))
	// changeRate 0.025 is reported as 2.5 percent.
	require.True(t, quote.Change24h.Valid)
	assert.True(t, quote.Change24h.Decimal.Equal(decimal.NewFromFloat(2.5)))
}

func TestKuCoinSource_EmptyDataIsNotSupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code": "200000", "data": {"symbol": "NOPE-USDT"}}`))
	}))
	defer server.Close()

	src := newTestSource(t, NewKuCoinSource, server.URL)
	_, err := src.Fetch(context.Background(), "NOPE")
	assert.True(t, feed.IsNotSupported(err))
}

func TestKuCoinSource_BusinessErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, err error)
	}{
		{
			name: "symbol not exist",
			body: `{"code": "400100", "msg": "This symbol does not exist"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, feed.IsNotSupported(err))
			},
		},
		{
			name: "rate limited",
			body: `{"code": "429000", "msg": "Too Many Requests"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, feed.IsRateLimited(err))
			},
		},
		{
			name: "other business error",
			body: `{"code": "500000", "msg": "Internal Server Error"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, feed.ErrProvider)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := newTestSource(t, NewKuCoinSource, server.URL)
			_, err := src.Fetch(context.Background(), "BTC")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
