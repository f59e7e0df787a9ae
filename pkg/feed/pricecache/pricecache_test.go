package pricecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

func testResult(ticker string, price float64) feed.Result {
	d := decimal.NewFromFloat(price)
	return feed.Result{
		Ticker:        ticker,
		Quotes:        []feed.Quote{feed.NewQuote("binance", d)},
		AveragePrice:  decimal.NullDecimal{Decimal: d, Valid: true},
		ActiveSources: 1,
		ComputedAt:    time.Now(),
	}
}

func TestCache_PutGet(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "cache.json"), logging.NewNoopLogger())

	_, ok := c.Get("BTC", time.Minute)
	assert.False(t, ok)

	c.Put("BTC", testResult("BTC", 65000))
	got, ok := c.Get("BTC", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "BTC", got.Ticker)
	assert.True(t, got.AveragePrice.Decimal.Equal(decimal.NewFromInt(65000)))
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "cache.json"), logging.NewNoopLogger())
	c.Put("BTC", testResult("BTC", 65000))

	_, ok := c.Get("BTC", 0)
	assert.False(t, ok)

	// The entry is still counted until overwritten.
	assert.Equal(t, 1, c.GetInfo().Entries)
}

func TestCache_PersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cache.json")
	logger := logging.NewNoopLogger()

	c := Load(path, logger)
	c.Put("BTC", testResult("BTC", 65000))
	c.Put("ETH", testResult("ETH", 3400))
	require.NoError(t, c.Flush())

	reloaded := Load(path, logger)
	assert.Equal(t, 2, reloaded.GetInfo().Entries)
	got, ok := reloaded.Get("ETH", time.Hour)
	require.True(t, ok)
	assert.True(t, got.AveragePrice.Decimal.Equal(decimal.NewFromInt(3400)))
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("[oops"), 0o600))

	c := Load(path, logging.NewNoopLogger())
	assert.Equal(t, 0, c.GetInfo().Entries)
}

func TestCache_ClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := Load(path, logging.NewNoopLogger(), WithFlushInterval(0))
	c.Put("BTC", testResult("BTC", 65000))
	require.FileExists(t, path)

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.GetInfo().Entries)
	assert.NoFileExists(t, path)
}
