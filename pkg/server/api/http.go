// Package api provides the HTTP API for the price aggregation service:
// price lookups plus blacklist and cache administration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/aggregator"
	"github.com/purr/LiveCryptoPrice/pkg/feed/pricecache"
	"github.com/purr/LiveCryptoPrice/pkg/feed/registry"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	addr          string
	agg           *aggregator.Aggregator
	registry      *registry.Registry
	cache         *pricecache.Cache
	cacheDuration time.Duration
	server        *http.Server
	logger        *logging.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, agg *aggregator.Aggregator, reg *registry.Registry, cache *pricecache.Cache, cacheDuration time.Duration, logger *logging.Logger) *Server {
	return &Server{
		addr:          addr,
		agg:           agg,
		registry:      reg,
		cache:         cache,
		cacheDuration: cacheDuration,
		logger:        logger.With("component", "api"),
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete},
	}).Handler(s.Handler())

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler builds the route handler without starting a listener. Used by
// tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/price/{ticker}", s.handlePrice).Methods(http.MethodGet)
	r.HandleFunc("/v1/blacklist", s.handleBlacklist).Methods(http.MethodGet)
	r.HandleFunc("/v1/blacklist/{source}/{ticker}", s.handleBlacklistAdd).Methods(http.MethodPut)
	r.HandleFunc("/v1/blacklist/{source}/{ticker}", s.handleBlacklistRemove).Methods(http.MethodDelete)
	r.HandleFunc("/v1/cache", s.handleCacheInfo).Methods(http.MethodGet)
	return r
}

// handleHealth handles /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrice handles /v1/price/{ticker}. The cache can be bypassed with
// ?cache=false.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/price", status, time.Since(start))
	}()

	ticker := mux.Vars(r)["ticker"]
	useCache := true
	if v := r.URL.Query().Get("cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			status = "400"
			http.Error(w, "invalid cache parameter", http.StatusBadRequest)
			return
		}
		useCache = b
	}

	result, err := s.agg.GetAggregatedPrice(r.Context(), ticker, useCache, s.cacheDuration)
	if err != nil {
		if errors.Is(err, feed.ErrInvalidTicker) {
			status = "400"
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status = "500"
		s.logger.Error("Price request failed", "ticker", ticker, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !result.HasData() {
		status = "404"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(result)
		return
	}
	s.sendJSON(w, result)
}

// handleBlacklist handles GET /v1/blacklist.
func (s *Server) handleBlacklist(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/blacklist", "200", time.Since(start))
	}()

	stats := s.registry.GetStats()
	entries := make(map[string][]string, len(stats.PerSource))
	for source := range stats.PerSource {
		entries[source] = s.registry.TickersFor(source)
	}

	s.sendJSON(w, map[string]interface{}{
		"stats":   stats,
		"entries": entries,
	})
}

// handleBlacklistAdd handles PUT /v1/blacklist/{source}/{ticker}.
func (s *Server) handleBlacklistAdd(w http.ResponseWriter, r *http.Request) {
	s.handleBlacklistChange(w, r, true)
}

// handleBlacklistRemove handles DELETE /v1/blacklist/{source}/{ticker}.
func (s *Server) handleBlacklistRemove(w http.ResponseWriter, r *http.Request) {
	s.handleBlacklistChange(w, r, false)
}

func (s *Server) handleBlacklistChange(w http.ResponseWriter, r *http.Request, add bool) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/blacklist", status, time.Since(start))
	}()

	vars := mux.Vars(r)
	source := vars["source"]
	ticker, err := feed.NormalizeTicker(vars["ticker"])
	if err != nil {
		status = "400"
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var changed bool
	if add {
		changed = s.registry.Blacklist(source, ticker)
	} else {
		changed = s.registry.Unblacklist(source, ticker)
	}

	s.sendJSON(w, map[string]interface{}{
		"source":  source,
		"ticker":  ticker,
		"changed": changed,
	})
}

// handleCacheInfo handles GET /v1/cache.
func (s *Server) handleCacheInfo(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/cache", "200", time.Since(start))
	}()

	if s.cache == nil {
		s.sendJSON(w, map[string]interface{}{"enabled": false})
		return
	}
	info := s.cache.GetInfo()
	s.sendJSON(w, map[string]interface{}{
		"enabled":      true,
		"entries":      info.Entries,
		"last_updated": info.LastUpdated,
	})
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
