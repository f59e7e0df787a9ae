package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
)

const coinGeckoAPIURL = "https://api.coingecko.com/api/v3"

// coinGeckoIDs maps tickers to CoinGecko coin identifiers. CoinGecko
// addresses coins by slug rather than symbol, so only mapped tickers can
// be queried.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"TON":  "the-open-network",
	"DOGE": "dogecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
}

// CoinGeckoSource fetches prices from the CoinGecko simple price API.
type CoinGeckoSource struct {
	sources.BaseSource

	apiURL string
	ids    map[string]string
}

// CoinGeckoSimplePrice represents one coin entry from /simple/price.
type CoinGeckoSimplePrice struct {
	USD          decimal.Decimal     `json:"usd"`
	USDVolume24h decimal.NullDecimal `json:"usd_24h_vol"`
	USDChange24h decimal.NullDecimal `json:"usd_24h_change"`
}

// NewCoinGeckoSource creates a new CoinGecko source. Additional ticker
// to coin id mappings can be supplied via the "ids" config block.
func NewCoinGeckoSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &CoinGeckoSource{
		BaseSource: sources.NewBaseSource("coingecko", deps),
		apiURL:     coinGeckoAPIURL,
		ids:        make(map[string]string, len(coinGeckoIDs)),
	}
	for ticker, id := range coinGeckoIDs {
		s.ids[ticker] = id
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	if extra, ok := config["ids"].(map[string]interface{}); ok {
		for ticker, v := range extra {
			if id, ok := v.(string); ok && id != "" {
				s.ids[strings.ToUpper(ticker)] = id
			}
		}
	}
	return s, nil
}

// Fetch returns the CoinGecko quote for a ticker. Tickers without a
// known coin id fail without a network call.
func (s *CoinGeckoSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	id, ok := s.ids[ticker]
	if !ok {
		return feed.Quote{}, fmt.Errorf("%w: no coingecko id for %s", feed.ErrNotSupported, ticker)
	}

	reqURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true",
		s.apiURL, url.QueryEscape(id))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data map[string]CoinGeckoSimplePrice
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	entry, ok := data[id]
	if !ok {
		return feed.Quote{}, fmt.Errorf("%w: %s missing from coingecko response", feed.ErrNotSupported, id)
	}
	if !entry.USD.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, id)
	}

	quote := feed.NewQuote(s.Name(), entry.USD)
	if entry.USDVolume24h.Valid {
		quote = quote.WithVolume(entry.USDVolume24h.Decimal)
	}
	if entry.USDChange24h.Valid {
		quote = quote.WithChange(entry.USDChange24h.Decimal)
	}
	return quote, nil
}
