// Package pricecache implements time-boxed memoization of aggregated price
// envelopes, persisted to a JSON file.
package pricecache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
)

// DefaultFlushInterval bounds disk writes: at most one flush per interval.
const DefaultFlushInterval = 60 * time.Second

// Entry is one cached envelope with its write timestamp.
type Entry struct {
	Timestamp time.Time   `json:"timestamp"`
	Result    feed.Result `json:"result"`
}

// Info summarizes cache contents.
type Info struct {
	Entries     int       `json:"entries"`
	LastUpdated time.Time `json:"last_updated"`
}

// persistedState is the on-disk layout.
type persistedState struct {
	LastUpdated time.Time        `json:"last_updated"`
	Data        map[string]Entry `json:"data"`
}

// Cache memoizes aggregated results per ticker. Entries are valid for reads
// only while younger than the caller's freshness window; expired entries are
// treated as absent and overwritten on the next write rather than deleted
// eagerly. State is persisted to a JSON file with rate-limited flushes.
type Cache struct {
	path          string
	logger        *logging.Logger
	flushInterval time.Duration

	mu          sync.Mutex
	entries     map[string]Entry
	lastUpdated time.Time
	dirty       bool
	lastFlush   time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithFlushInterval overrides the minimum interval between disk writes.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Cache) { c.flushInterval = d }
}

// Load reads the cache from path, falling back to an empty cache when the
// file is absent or corrupt.
func Load(path string, logger *logging.Logger, opts ...Option) *Cache {
	c := &Cache{
		path:          path,
		logger:        logger,
		flushInterval: DefaultFlushInterval,
		entries:       make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read price cache, starting empty", "path", path, "error", err)
		}
		return c
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("Corrupt price cache, starting empty", "path", path, "error", err)
		return c
	}
	if state.Data != nil {
		c.entries = state.Data
	}
	c.lastUpdated = state.LastUpdated
	logger.Info("Loaded price cache", "path", path, "entries", len(c.entries))
	return c
}

// Get returns the cached envelope for a ticker if it is younger than
// maxAge. Expired or missing entries report a miss.
func (c *Cache) Get(ticker string, maxAge time.Duration) (feed.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ticker]
	if !ok {
		metrics.RecordCacheLookup("miss")
		return feed.Result{}, false
	}
	if time.Since(entry.Timestamp) >= maxAge {
		metrics.RecordCacheLookup("expired")
		return feed.Result{}, false
	}
	metrics.RecordCacheLookup("hit")
	return entry.Result, true
}

// Put writes an envelope through to the cache.
func (c *Cache) Put(ticker string, result feed.Result) {
	c.mu.Lock()
	now := time.Now()
	c.entries[ticker] = Entry{Timestamp: now, Result: result}
	c.lastUpdated = now
	c.dirty = true
	c.maybeFlushLocked()
	c.mu.Unlock()
}

// GetInfo summarizes cache contents.
func (c *Cache) GetInfo() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{Entries: len(c.entries), LastUpdated: c.lastUpdated}
}

// Clear empties the cache in memory and removes the backing file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.dirty = false
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Flush forces a write of the current state to disk if anything changed.
// Call on shutdown.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	return c.flushLocked()
}

func (c *Cache) maybeFlushLocked() {
	if !c.dirty || time.Since(c.lastFlush) < c.flushInterval {
		return
	}
	if err := c.flushLocked(); err != nil {
		// Serve from memory for the rest of the process lifetime.
		c.logger.Error("Failed to persist price cache", "path", c.path, "error", err)
	}
}

func (c *Cache) flushLocked() error {
	state := persistedState{LastUpdated: c.lastUpdated, Data: c.entries}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return err
	}

	c.dirty = false
	c.lastFlush = time.Now()
	c.logger.Debug("Persisted price cache", "path", c.path, "entries", len(c.entries))
	return nil
}
