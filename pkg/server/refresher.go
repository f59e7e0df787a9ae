// Package server hosts the long-running service components built on top
// of the aggregator: the HTTP API and the background price refresher.
package server

import (
	"context"
	"time"

	"github.com/purr/LiveCryptoPrice/pkg/feed/aggregator"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

// Refresher keeps a fixed set of tickers warm in the cache by
// re-aggregating them on an interval. API reads then mostly hit fresh
// cache entries instead of fanning out to the venues.
type Refresher struct {
	agg      *aggregator.Aggregator
	tickers  []string
	interval time.Duration
	logger   *logging.Logger
}

// NewRefresher creates a refresher. With no tickers or a non-positive
// interval, Run returns immediately.
func NewRefresher(agg *aggregator.Aggregator, tickers []string, interval time.Duration, logger *logging.Logger) *Refresher {
	return &Refresher{
		agg:      agg,
		tickers:  tickers,
		interval: interval,
		logger:   logger.With("component", "refresher"),
	}
}

// Run refreshes all configured tickers immediately and then on every
// interval tick until the context is canceled.
func (r *Refresher) Run(ctx context.Context) {
	if len(r.tickers) == 0 || r.interval <= 0 {
		return
	}

	r.logger.Info("Starting refresh loop", "tickers", len(r.tickers), "interval", r.interval.String())
	r.refreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Refresh loop stopped")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	for _, t := range r.tickers {
		if ctx.Err() != nil {
			return
		}
		// Bypass the cache so every pass stores a fresh result.
		if _, err := r.agg.GetAggregatedPrice(ctx, t, false, 0); err != nil {
			r.logger.Warn("Refresh failed", "ticker", t, "error", err)
		}
	}
}
