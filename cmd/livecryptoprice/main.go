package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/purr/LiveCryptoPrice/pkg/config"
	"github.com/purr/LiveCryptoPrice/pkg/feed/aggregator"
	"github.com/purr/LiveCryptoPrice/pkg/feed/gateway"
	"github.com/purr/LiveCryptoPrice/pkg/feed/pricecache"
	"github.com/purr/LiveCryptoPrice/pkg/feed/registry"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
	"github.com/purr/LiveCryptoPrice/pkg/server"
	"github.com/purr/LiveCryptoPrice/pkg/server/api"
	"github.com/purr/LiveCryptoPrice/pkg/version"

	// Import sources to register them
	_ "github.com/purr/LiveCryptoPrice/pkg/feed/sources/cex"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file (optional)")
	showVer       = flag.Bool("version", false, "Show version and exit")
	serve         = flag.Bool("serve", false, "Run the HTTP API server instead of a one-shot fetch")
	noCache       = flag.Bool("no-cache", false, "Bypass the price cache for this fetch")
	cacheDuration = flag.Duration("cache-duration", 0, "Override the cache validity window")
	clearCache    = flag.Bool("clear-cache", false, "Clear the price cache and exit")
	debug         = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("livecryptoprice version %s\n", version.Version)
		os.Exit(0)
	}

	// Optional .env file for proxies and API credentials
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		cfg.Logging.Level = "debug"
	}
	if *cacheDuration > 0 {
		cfg.Cache.Duration = config.Duration(*cacheDuration)
	}

	config.SetKnownSources(sources.List())
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	if *clearCache {
		cache := pricecache.Load(cfg.Cache.Path, logger)
		if err := cache.Clear(); err != nil {
			logger.Fatal("Failed to clear cache", "error", err)
		}
		logger.Info("Cache cleared", "path", cfg.Cache.Path)
		return
	}

	tickers := flag.Args()
	if !*serve && len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: livecryptoprice [flags] TICKER [TICKER...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	agg, reg, cache, err := buildAggregator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build aggregator", "error", err)
	}
	defer flushStores(reg, cache, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *serve {
		runServe(ctx, cfg, agg, reg, cache, logger)
		return
	}
	runFetch(ctx, cfg, agg, tickers, logger)
}

func loadConfig() (*config.Config, error) {
	if *configFile == "" {
		return config.Default(), nil
	}
	return config.Load(*configFile)
}

// buildAggregator wires the gateway, proxy pool, registry, cache and all
// enabled sources into an aggregator.
func buildAggregator(cfg *config.Config, logger *logging.Logger) (*aggregator.Aggregator, *registry.Registry, *pricecache.Cache, error) {
	gwOpts := []gateway.Option{
		gateway.WithTimeout(cfg.Fetch.Timeout.ToDuration()),
		gateway.WithRetries(cfg.Fetch.MaxRetries, cfg.Fetch.RetryDelay.ToDuration()),
	}
	if len(cfg.Proxy.Proxies) > 0 {
		healthURL := cfg.Proxy.HealthCheckURL
		if healthURL == "" {
			healthURL = gateway.DefaultHealthCheckURL
		}
		pool := gateway.NewProxyPool(cfg.Proxy.Proxies, healthURL, logger)
		gwOpts = append(gwOpts, gateway.WithProxyPool(pool, cfg.Proxy.MaxAttempts))
	}
	gw := gateway.New(logger, gwOpts...)

	deps := sources.Deps{Gateway: gw, Logger: logger}
	var srcs []sources.Source
	for _, sourceCfg := range cfg.EnabledSources() {
		src, err := sources.Create(sourceCfg.Name, deps, sourceCfg.Config)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating source %s: %w", sourceCfg.Name, err)
		}
		srcs = append(srcs, src)
	}

	reg := registry.Load(cfg.Registry.Path, logger, registry.WithOverrides(cfg.Registry.Overrides))

	var cache *pricecache.Cache
	if cfg.Cache.Enabled {
		cache = pricecache.Load(cfg.Cache.Path, logger)
	}

	agg, err := aggregator.New(srcs, reg, cache, logger,
		aggregator.WithFetchTimeout(cfg.Fetch.Timeout.ToDuration()))
	if err != nil {
		return nil, nil, nil, err
	}
	return agg, reg, cache, nil
}

// runFetch aggregates each requested ticker once and prints the results.
func runFetch(ctx context.Context, cfg *config.Config, agg *aggregator.Aggregator, tickers []string, logger *logging.Logger) {
	useCache := !*noCache
	for _, ticker := range tickers {
		result, err := agg.GetAggregatedPrice(ctx, ticker, useCache, cfg.Cache.Duration.ToDuration())
		if err != nil {
			logger.Error("Fetch failed", "ticker", ticker, "error", err)
			continue
		}
		fmt.Println(result.PlainText())
		if *debug {
			for _, q := range result.Quotes {
				logger.Debug("Source quote", "ticker", result.Ticker,
					"source", q.Source, "price", q.Price.String())
			}
			logger.Debug("Source coverage", "ticker", result.Ticker,
				"configured", len(agg.Sources()),
				"active", result.ActiveSources,
				"skipped", result.SkippedSources)
		}
	}
}

// runServe starts the HTTP API and the optional refresh loop and blocks
// until the context is canceled.
func runServe(ctx context.Context, cfg *config.Config, agg *aggregator.Aggregator, reg *registry.Registry, cache *pricecache.Cache, logger *logging.Logger) {
	srv := api.NewServer(cfg.Server.Addr, agg, reg, cache, cfg.Cache.Duration.ToDuration(), logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	refresher := server.NewRefresher(agg, cfg.Server.RefreshTickers, cfg.Server.RefreshInterval.ToDuration(), logger)
	go refresher.Run(ctx)

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

// flushStores writes any pending registry and cache state to disk.
func flushStores(reg *registry.Registry, cache *pricecache.Cache, logger *logging.Logger) {
	if reg != nil {
		if err := reg.Flush(); err != nil {
			logger.Error("Failed to flush blacklist", "error", err)
		}
	}
	if cache != nil {
		if err := cache.Flush(); err != nil {
			logger.Error("Failed to flush cache", "error", err)
		}
	}
}
