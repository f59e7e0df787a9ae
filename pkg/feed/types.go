// Package feed defines the core data model for multi-venue price
// aggregation: per-venue quotes, the aggregated result envelope and the
// fetch error taxonomy shared by adapters, registry and aggregator.
package feed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one venue's observation for one ticker at one point in time.
// Volume and change are optional because not every venue reports them.
// A Quote is immutable once constructed.
type Quote struct {
	Source    string              `json:"source"`
	Price     decimal.Decimal     `json:"price"`
	Volume24h decimal.NullDecimal `json:"volume_24h"`
	Change24h decimal.NullDecimal `json:"change_24h"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// NewQuote constructs a quote with the optional fields absent.
func NewQuote(source string, price decimal.Decimal) Quote {
	return Quote{
		Source:    source,
		Price:     price,
		FetchedAt: time.Now(),
	}
}

// WithVolume returns a copy of the quote with 24h volume set.
func (q Quote) WithVolume(volume decimal.Decimal) Quote {
	q.Volume24h = decimal.NullDecimal{Decimal: volume, Valid: true}
	return q
}

// WithChange returns a copy of the quote with 24h percent change set.
func (q Quote) WithChange(change decimal.Decimal) Quote {
	q.Change24h = decimal.NullDecimal{Decimal: change, Valid: true}
	return q
}

// Result is one ticker's aggregated envelope. Quotes appear in the fixed
// configured adapter order, not completion order, so downstream formatting
// is deterministic across runs.
//
// AveragePrice is null exactly when ActiveSources is zero. AverageChange24h
// and AverageVolume24h are computed only over the quotes that reported the
// respective value and are null when none did.
type Result struct {
	Ticker           string              `json:"ticker"`
	Quotes           []Quote             `json:"quotes"`
	AveragePrice     decimal.NullDecimal `json:"average_price"`
	AverageVolume24h decimal.NullDecimal `json:"average_volume_24h"`
	AverageChange24h decimal.NullDecimal `json:"average_change_24h"`
	ActiveSources    int                 `json:"active_sources"`
	SkippedSources   int                 `json:"skipped_sources"`
	ComputedAt       time.Time           `json:"computed_at"`
}

// QuoteFor returns the quote contributed by a source, if any.
func (r Result) QuoteFor(source string) (Quote, bool) {
	for _, q := range r.Quotes {
		if q.Source == source {
			return q, true
		}
	}
	return Quote{}, false
}

// HasData reports whether at least one source contributed a quote.
func (r Result) HasData() bool {
	return r.AveragePrice.Valid
}
