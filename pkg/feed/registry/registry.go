// Package registry implements the durable unsupported-pair registry: the
// memory of (source, ticker) combinations known not to exist on a venue.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
	"github.com/purr/LiveCryptoPrice/pkg/metrics"
)

// DefaultFlushInterval bounds disk writes: at most one flush per interval.
const DefaultFlushInterval = 60 * time.Second

// Registry is a persistent set of (source, ticker) pairs that venues have
// definitively rejected. It is consulted before dispatch so known-dead pairs
// cost no network calls.
//
// Mutations mark the in-memory state dirty; flushes serialize the complete
// current state (never a delta), so writes landing between flushes are not
// lost. Flushes are rate limited to DefaultFlushInterval.
type Registry struct {
	path          string
	logger        *logging.Logger
	flushInterval time.Duration

	// overrides are re-applied unconditionally after every load so a stale
	// persisted unblacklist can never remove them.
	overrides map[string][]string

	mu        sync.Mutex
	entries   map[string]map[string]bool // source -> set of tickers
	dirty     bool
	lastFlush time.Time
}

// Stats summarizes registry contents.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Sources      int            `json:"sources"`
	Tickers      int            `json:"tickers"`
	PerSource    map[string]int `json:"per_source"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithFlushInterval overrides the minimum interval between disk writes.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Registry) { r.flushInterval = d }
}

// WithOverrides sets the fixed manual-override set: tickers forced
// unsupported on specific sources regardless of persisted state.
func WithOverrides(overrides map[string][]string) Option {
	return func(r *Registry) { r.overrides = overrides }
}

// Load reads the registry from path, falling back to an empty registry when
// the file is absent or corrupt, then applies the manual overrides.
func Load(path string, logger *logging.Logger, opts ...Option) *Registry {
	r := &Registry{
		path:          path,
		logger:        logger,
		flushInterval: DefaultFlushInterval,
		entries:       make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.loadFromDisk()
	r.applyOverrides()
	r.recordSizes()
	return r
}

func (r *Registry) loadFromDisk() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Failed to read blacklist file, starting empty",
				"path", r.path, "error", err)
		}
		return
	}

	var persisted map[string][]string
	if err := json.Unmarshal(data, &persisted); err != nil {
		r.logger.Warn("Corrupt blacklist file, starting empty", "path", r.path, "error", err)
		return
	}

	for source, tickers := range persisted {
		set := make(map[string]bool, len(tickers))
		for _, t := range tickers {
			set[t] = true
		}
		r.entries[source] = set
	}
	r.logger.Info("Loaded blacklist", "path", r.path, "sources", len(r.entries))
}

func (r *Registry) applyOverrides() {
	for source, tickers := range r.overrides {
		for _, t := range tickers {
			if r.addLocked(source, t) {
				r.logger.Info("Applied manual blacklist override", "source", source, "ticker", t)
			}
		}
	}
}

// IsBlacklisted reports whether a ticker is known unsupported on a source.
func (r *Registry) IsBlacklisted(source, ticker string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[source][ticker]
}

// MarkUnsupported records a definitive miss reported by an adapter. It is a
// no-op when the observed error is rate-limit shaped, regardless of caller
// intent: a transient rate-limit storm must never permanently hide a venue.
func (r *Registry) MarkUnsupported(source, ticker string, observedErr error) {
	if observedErr != nil && feed.IsRateLimited(observedErr) {
		return
	}
	if r.Blacklist(source, ticker) {
		r.logger.Info("Recorded unsupported pair", "source", source, "ticker", ticker)
	}
}

// Blacklist manually records a pair as unsupported. Idempotent; reports
// whether the call changed state.
func (r *Registry) Blacklist(source, ticker string) bool {
	r.mu.Lock()
	changed := r.addLocked(source, ticker)
	if changed {
		r.dirty = true
	}
	r.maybeFlushLocked()
	r.mu.Unlock()

	if changed {
		r.recordSizes()
	}
	return changed
}

// Unblacklist removes a pair. Idempotent; reports whether the call changed
// state. Manual overrides are not removable: they are re-applied in place.
func (r *Registry) Unblacklist(source, ticker string) bool {
	if r.isOverride(source, ticker) {
		r.logger.Warn("Refusing to unblacklist manual override", "source", source, "ticker", ticker)
		return false
	}

	r.mu.Lock()
	changed := false
	if set, ok := r.entries[source]; ok && set[ticker] {
		delete(set, ticker)
		if len(set) == 0 {
			delete(r.entries, source)
		}
		changed = true
		r.dirty = true
	}
	r.maybeFlushLocked()
	r.mu.Unlock()

	if changed {
		r.recordSizes()
	}
	return changed
}

// TickersFor returns the sorted blacklisted tickers for a source.
func (r *Registry) TickersFor(source string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickers := make([]string, 0, len(r.entries[source]))
	for t := range r.entries[source] {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// SourcesFor returns the sorted sources on which a ticker is blacklisted.
func (r *Registry) SourcesFor(ticker string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sourcesList []string
	for source, set := range r.entries {
		if set[ticker] {
			sourcesList = append(sourcesList, source)
		}
	}
	sort.Strings(sourcesList)
	return sourcesList
}

// GetStats summarizes registry contents.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{PerSource: make(map[string]int, len(r.entries))}
	tickers := make(map[string]bool)
	for source, set := range r.entries {
		stats.Sources++
		stats.PerSource[source] = len(set)
		stats.TotalEntries += len(set)
		for t := range set {
			tickers[t] = true
		}
	}
	stats.Tickers = len(tickers)
	return stats
}

// Flush forces a write of the current state to disk if anything changed.
// Call on shutdown.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}
	return r.flushLocked()
}

func (r *Registry) addLocked(source, ticker string) bool {
	set, ok := r.entries[source]
	if !ok {
		set = make(map[string]bool)
		r.entries[source] = set
	}
	if set[ticker] {
		return false
	}
	set[ticker] = true
	return true
}

func (r *Registry) isOverride(source, ticker string) bool {
	for _, t := range r.overrides[source] {
		if t == ticker {
			return true
		}
	}
	return false
}

// maybeFlushLocked writes to disk when dirty and the flush window elapsed.
func (r *Registry) maybeFlushLocked() {
	if !r.dirty || time.Since(r.lastFlush) < r.flushInterval {
		return
	}
	if err := r.flushLocked(); err != nil {
		// Keep serving from memory; persistence failures must not take the
		// process down.
		r.logger.Error("Failed to persist blacklist", "path", r.path, "error", err)
	}
}

func (r *Registry) flushLocked() error {
	persisted := make(map[string][]string, len(r.entries))
	for source, set := range r.entries {
		tickers := make([]string, 0, len(set))
		for t := range set {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		persisted[source] = tickers
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return err
	}

	r.dirty = false
	r.lastFlush = time.Now()
	r.logger.Debug("Persisted blacklist", "path", r.path, "sources", len(persisted))
	return nil
}

func (r *Registry) recordSizes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for source, set := range r.entries {
		metrics.RecordBlacklistSize(source, len(set))
	}
}
