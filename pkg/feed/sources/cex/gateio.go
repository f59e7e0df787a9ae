package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
)

const gateioAPIURL = "https://api.gateio.ws/api/v4"

// GateioSource fetches spot prices from the Gate.io REST API.
type GateioSource struct {
	sources.BaseSource

	apiURL string
}

// GateioTicker represents one ticker from /spot/tickers.
type GateioTicker struct {
	CurrencyPair     string `json:"currency_pair"`
	Last             string `json:"last"`
	ChangePercentage string `json:"change_percentage"`
	QuoteVolume      string `json:"quote_volume"`
}

// NewGateioSource creates a new Gate.io source.
func NewGateioSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &GateioSource{
		BaseSource: sources.NewBaseSource("gateio", deps),
		apiURL:     gateioAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the Gate.io quote for a ticker.
func (s *GateioSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := ticker + "_USDT"
	reqURL := fmt.Sprintf("%s/spot/tickers?currency_pair=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var tickers []GateioTicker
	if err := json.Unmarshal(resp.Body, &tickers); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling tickers: %v", feed.ErrTransient, err)
	}
	if len(tickers) == 0 {
		return feed.Quote{}, fmt.Errorf("%w: %s not listed on gateio", feed.ErrNotSupported, pair)
	}

	t := tickers[0]
	price, err := sources.ParseDecimal("last", t.Last)
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if v, err := sources.ParseDecimal("quote_volume", t.QuoteVolume); err == nil {
		quote = quote.WithVolume(v)
	}
	if c, err := sources.ParseDecimal("change_percentage", t.ChangePercentage); err == nil {
		quote = quote.WithChange(c)
	}
	return quote, nil
}
