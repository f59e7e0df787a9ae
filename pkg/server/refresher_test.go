package server

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/aggregator"
	"github.com/purr/LiveCryptoPrice/pkg/feed/pricecache"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

type countingSource struct {
	calls int64
}

var _ sources.Source = (*countingSource)(nil)

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(context.Context, string) (feed.Quote, error) {
	atomic.AddInt64(&c.calls, 1)
	return feed.NewQuote("counting", decimal.NewFromInt(1)), nil
}

func TestRefresher_WarmsCache(t *testing.T) {
	logger := logging.NewNoopLogger()
	src := &countingSource{}
	cache := pricecache.Load(filepath.Join(t.TempDir(), "cache.json"), logger)

	agg, err := aggregator.New([]sources.Source{src}, nil, cache, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRefresher(agg, []string{"BTC", "ETH"}, time.Hour, logger)

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// The initial pass runs before the first tick.
	assert.Eventually(t, func() bool {
		return cache.GetInfo().Entries == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop on cancel")
	}
	assert.Equal(t, int64(2), atomic.LoadInt64(&src.calls))
}

func TestRefresher_NoTickersReturnsImmediately(t *testing.T) {
	logger := logging.NewNoopLogger()
	agg, err := aggregator.New([]sources.Source{&countingSource{}}, nil, nil, logger)
	require.NoError(t, err)

	r := NewRefresher(agg, nil, time.Second, logger)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher with no tickers should return immediately")
	}
}
