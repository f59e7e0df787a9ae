// Package cex provides centralized-exchange price source adapters.
package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
)

const binanceAPIURL = "https://api.binance.com/api/v3"

// BinanceSource fetches spot prices from the Binance REST API.
type BinanceSource struct {
	sources.BaseSource

	apiURL string
	quote  string
}

// BinanceTicker24h represents the /ticker/24hr response for a single pair.
type BinanceTicker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// NewBinanceSource creates a new Binance source.
func NewBinanceSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &BinanceSource{
		BaseSource: sources.NewBaseSource("binance", deps),
		apiURL:     binanceAPIURL,
		quote:      "USDT",
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	if q, ok := config["quote"].(string); ok && q != "" {
		s.quote = q
	}
	return s, nil
}

// Fetch returns the Binance quote for a ticker.
func (s *BinanceSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := ticker + s.quote
	reqURL := fmt.Sprintf("%s/ticker/24hr?symbol=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data BinanceTicker24h
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling ticker: %v", feed.ErrTransient, err)
	}
	if data.LastPrice == "" {
		return feed.Quote{}, fmt.Errorf("%w: no price in response for %s", feed.ErrTransient, pair)
	}

	price, err := sources.ParseDecimal("lastPrice", data.LastPrice)
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if v, err := sources.ParseDecimal("quoteVolume", data.QuoteVolume); err == nil {
		quote = quote.WithVolume(v)
	}
	if c, err := sources.ParseDecimal("priceChangePercent", data.PriceChangePercent); err == nil {
		quote = quote.WithChange(c)
	}
	return quote, nil
}
