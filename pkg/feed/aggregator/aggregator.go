package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/pricecache"
	"github.com/purr/LiveCryptoPrice/pkg/feed/registry"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
)

// DefaultFetchTimeout bounds a single source fetch.
const DefaultFetchTimeout = 10 * time.Second

// Aggregator coordinates one price request across all configured sources.
// The source slice fixes the quote order of every result it produces.
type Aggregator struct {
	sources      []sources.Source
	registry     *registry.Registry
	cache        *pricecache.Cache
	logger       *logging.Logger
	fetchTimeout time.Duration
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFetchTimeout overrides the per-source fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// New creates an aggregator over an ordered source list. The registry and
// cache may be nil, in which case blacklist filtering and caching are
// disabled.
func New(srcs []sources.Source, reg *registry.Registry, cache *pricecache.Cache, logger *logging.Logger, opts ...Option) (*Aggregator, error) {
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	a := &Aggregator{
		sources:      srcs,
		registry:     reg,
		cache:        cache,
		logger:       logger.With("component", "aggregator"),
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Sources returns the names of the configured sources in dispatch order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// GetAggregatedPrice returns the aggregated price for a ticker. With
// useCache set, a fresh cached result is returned as-is and no sources
// are contacted. Otherwise every non-blacklisted source is queried
// concurrently, definitive unsupported-pair rejections are recorded in
// the registry, and the combined result is written through to the cache.
//
// A result with zero contributing sources is still a valid result; the
// caller distinguishes it via HasData.
func (a *Aggregator) GetAggregatedPrice(ctx context.Context, ticker string, useCache bool, cacheDuration time.Duration) (feed.Result, error) {
	ticker, err := feed.NormalizeTicker(ticker)
	if err != nil {
		return feed.Result{}, err
	}

	if useCache && a.cache != nil {
		if cached, ok := a.cache.Get(ticker, cacheDuration); ok {
			a.logger.Debug("Cache hit", "ticker", ticker)
			return cached, nil
		}
	}

	start := time.Now()
	result := a.fetchAll(ctx, ticker)
	metrics.RecordAggregation(ticker, result.ActiveSources, time.Since(start))

	if a.cache != nil {
		a.cache.Put(ticker, result)
	}
	return result, nil
}

// fetchAll queries every eligible source concurrently and folds the
// responses. Quotes land in a slice indexed by source position so the
// result order matches the configured order regardless of completion
// order.
func (a *Aggregator) fetchAll(ctx context.Context, ticker string) feed.Result {
	type slot struct {
		quote feed.Quote
		err   error
		ok    bool
	}

	slots := make([]slot, len(a.sources))
	skipped := 0

	var wg sync.WaitGroup
	for i, src := range a.sources {
		if a.registry != nil && a.registry.IsBlacklisted(src.Name(), ticker) {
			skipped++
			a.logger.Debug("Skipping blacklisted source", "source", src.Name(), "ticker", ticker)
			continue
		}

		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()

			fetchStart := time.Now()
			quote, err := src.Fetch(fetchCtx, ticker)
			outcome := "ok"
			if err != nil {
				outcome = feed.ClassOf(err)
			}
			metrics.RecordSourceFetch(src.Name(), outcome, time.Since(fetchStart))

			if err != nil {
				slots[i] = slot{err: err}
				return
			}
			slots[i] = slot{quote: quote, ok: true}
		}(i, src)
	}
	wg.Wait()

	result := feed.Result{
		Ticker:     ticker,
		ComputedAt: time.Now(),
	}
	for i, s := range slots {
		name := a.sources[i].Name()
		switch {
		case s.ok:
			result.Quotes = append(result.Quotes, s.quote)
		case s.err != nil:
			a.handleFetchError(name, ticker, s.err)
		}
	}
	result.ActiveSources = len(result.Quotes)
	result.SkippedSources = skipped
	a.computeAverages(&result)

	a.logger.Info("Aggregated price",
		"ticker", ticker,
		"active_sources", result.ActiveSources,
		"skipped_sources", result.SkippedSources)
	return result
}

func (a *Aggregator) handleFetchError(source, ticker string, err error) {
	switch {
	case feed.IsNotSupported(err):
		a.logger.Info("Pair not supported", "source", source, "ticker", ticker, "error", err)
		if a.registry != nil {
			a.registry.MarkUnsupported(source, ticker, err)
		}
	case feed.IsRateLimited(err):
		a.logger.Warn("Source rate limited", "source", source, "ticker", ticker, "error", err)
	default:
		a.logger.Warn("Source fetch failed", "source", source, "ticker", ticker, "error", err)
	}
}

// computeAverages fills the mean fields. The price mean covers every
// quote; volume and change means cover only the quotes that reported
// the respective value.
func (a *Aggregator) computeAverages(result *feed.Result) {
	if len(result.Quotes) == 0 {
		return
	}

	priceSum := decimal.Zero
	volumeSum, changeSum := decimal.Zero, decimal.Zero
	volumeCount, changeCount := 0, 0

	for _, q := range result.Quotes {
		priceSum = priceSum.Add(q.Price)
		if q.Volume24h.Valid {
			volumeSum = volumeSum.Add(q.Volume24h.Decimal)
			volumeCount++
		}
		if q.Change24h.Valid {
			changeSum = changeSum.Add(q.Change24h.Decimal)
			changeCount++
		}
	}

	result.AveragePrice = decimal.NullDecimal{
		Decimal: priceSum.Div(decimal.NewFromInt(int64(len(result.Quotes)))),
		Valid:   true,
	}
	if volumeCount > 0 {
		result.AverageVolume24h = decimal.NullDecimal{
			Decimal: volumeSum.Div(decimal.NewFromInt(int64(volumeCount))),
			Valid:   true,
		}
	}
	if changeCount > 0 {
		result.AverageChange24h = decimal.NullDecimal{
			Decimal: changeSum.Div(decimal.NewFromInt(int64(changeCount))),
			Valid:   true,
		}
	}
}
