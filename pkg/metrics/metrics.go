// Package metrics provides Prometheus metrics for the price aggregation
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetchesTotal counts adapter fetch attempts by outcome class.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of adapter fetch attempts, by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// SourceFetchDuration is a histogram of adapter fetch latencies.
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Latency of adapter fetches",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// AggregationDuration is a histogram of full fan-out durations.
	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of a full ticker aggregation fan-out",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActiveSourcesPerTicker is a gauge of how many sources contributed to
	// the most recent aggregation of each ticker.
	ActiveSourcesPerTicker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_sources",
			Help: "Number of sources that contributed to the latest aggregation",
		},
		[]string{"ticker"},
	)

	// CacheLookupsTotal counts price cache lookups by result.
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_lookups_total",
			Help: "Total number of price cache lookups, by result (hit, miss, expired)",
		},
		[]string{"result"},
	)

	// BlacklistEntries is a gauge of unsupported-pair registry entries.
	BlacklistEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blacklist_entries",
			Help: "Number of unsupported tickers recorded per source",
		},
		[]string{"source"},
	)

	// RateLimitedDomains is a gauge of domains currently under 429 backoff.
	RateLimitedDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limited_domains",
			Help: "Number of domains currently in rate-limit backoff",
		},
	)

	// ProxyPoolSize is a gauge of proxy pool membership by state.
	ProxyPoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxy_pool_size",
			Help: "Number of proxies in the pool by state (valid, failed, untested)",
		},
		[]string{"state"},
	)

	// HTTPRequestsTotal counts API server requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of API request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP API request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		SourceFetchesTotal,
		SourceFetchDuration,
		AggregationDuration,
		ActiveSourcesPerTicker,
		CacheLookupsTotal,
		BlacklistEntries,
		RateLimitedDomains,
		ProxyPoolSize,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records an adapter fetch attempt and its outcome class.
func RecordSourceFetch(source, outcome string, duration time.Duration) {
	SourceFetchesTotal.WithLabelValues(source, outcome).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAggregation records a completed fan-out.
func RecordAggregation(ticker string, activeSources int, duration time.Duration) {
	AggregationDuration.Observe(duration.Seconds())
	ActiveSourcesPerTicker.WithLabelValues(ticker).Set(float64(activeSources))
}

// RecordCacheLookup records a price cache lookup result.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordBlacklistSize records the registry entry count for a source.
func RecordBlacklistSize(source string, entries int) {
	BlacklistEntries.WithLabelValues(source).Set(float64(entries))
}

// RecordRateLimitedDomains records how many domains are under backoff.
func RecordRateLimitedDomains(count int) {
	RateLimitedDomains.Set(float64(count))
}

// RecordProxyPool records pool membership counts.
func RecordProxyPool(valid, failed, untested int) {
	ProxyPoolSize.WithLabelValues("valid").Set(float64(valid))
	ProxyPoolSize.WithLabelValues("failed").Set(float64(failed))
	ProxyPoolSize.WithLabelValues("untested").Set(float64(untested))
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
