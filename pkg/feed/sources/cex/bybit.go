package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
)

const bybitAPIURL = "https://api.bybit.com/v5"

// BybitSource fetches spot prices from the Bybit REST API.
type BybitSource struct {
	sources.BaseSource

	apiURL string
}

// BybitTicker represents one instrument from /market/tickers.
type BybitTicker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	PrevPrice24h string `json:"prevPrice24h"`
	Volume24h    string `json:"volume24h"`
}

// BybitResponse represents the v5 envelope.
type BybitResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []BybitTicker `json:"list"`
	} `json:"result"`
}

// NewBybitSource creates a new Bybit source.
func NewBybitSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &BybitSource{
		BaseSource: sources.NewBaseSource("bybit", deps),
		apiURL:     bybitAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the Bybit quote for a ticker. The 24h percent change is
// derived from the price 24 hours ago.
func (s *BybitSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := ticker + "USDT"
	reqURL := fmt.Sprintf("%s/market/tickers?category=spot&symbol=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data BybitResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	if data.RetCode != 0 {
		msg := strings.ToLower(data.RetMsg)
		switch {
		case strings.Contains(msg, "not found") || strings.Contains(msg, "invalid"):
			return feed.Quote{}, fmt.Errorf("%w: %s on bybit: %s", feed.ErrNotSupported, pair, data.RetMsg)
		case strings.Contains(msg, "rate limit"):
			return feed.Quote{}, fmt.Errorf("%w: bybit: %s", feed.ErrRateLimited, data.RetMsg)
		default:
			return feed.Quote{}, fmt.Errorf("%w: bybit: %s", feed.ErrProvider, data.RetMsg)
		}
	}
	if len(data.Result.List) == 0 {
		return feed.Quote{}, fmt.Errorf("%w: empty ticker list for %s", feed.ErrTransient, pair)
	}

	t := data.Result.List[0]
	price, err := sources.ParseDecimal("lastPrice", t.LastPrice)
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if v, err := sources.ParseDecimal("volume24h", t.Volume24h); err == nil {
		quote = quote.WithVolume(v)
	}
	if prev, err := sources.ParseDecimal("prevPrice24h", t.PrevPrice24h); err == nil {
		if change, ok := sources.PercentChange(prev, price); ok {
			quote = quote.WithChange(change)
		}
	}
	return quote, nil
}
