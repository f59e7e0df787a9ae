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

const cryptocompareAPIURL = "https://min-api.cryptocompare.com/data"

// CryptoCompareSource fetches prices from the CryptoCompare aggregate API.
type CryptoCompareSource struct {
	sources.BaseSource

	apiURL string
}

// CryptoCompareRaw represents the RAW quote block for one ticker/currency.
type CryptoCompareRaw struct {
	Price           decimal.Decimal `json:"PRICE"`
	Volume24Hour    decimal.Decimal `json:"VOLUME24HOUR"`
	ChangePct24Hour decimal.Decimal `json:"CHANGEPCT24HOUR"`
}

// CryptoCompareResponse represents the /pricemultifull response.
type CryptoCompareResponse struct {
	Response string                                 `json:"Response"`
	Message  string                                 `json:"Message"`
	Raw      map[string]map[string]CryptoCompareRaw `json:"RAW"`
}

// NewCryptoCompareSource creates a new CryptoCompare source.
func NewCryptoCompareSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &CryptoCompareSource{
		BaseSource: sources.NewBaseSource("cryptocompare", deps),
		apiURL:     cryptocompareAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the CryptoCompare quote for a ticker.
func (s *CryptoCompareSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	reqURL := fmt.Sprintf("%s/pricemultifull?fsyms=%s&tsyms=USD", s.apiURL, url.QueryEscape(ticker))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data CryptoCompareResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	// CryptoCompare signals business errors with HTTP 200.
	if data.Response == "Error" {
		if strings.Contains(strings.ToLower(data.Message), "there is no data for") {
			return feed.Quote{}, fmt.Errorf("%w: %s on cryptocompare", feed.ErrNotSupported, ticker)
		}
		return feed.Quote{}, fmt.Errorf("%w: cryptocompare: %s", feed.ErrProvider, data.Message)
	}

	raw, ok := data.Raw[ticker]["USD"]
	if !ok {
		return feed.Quote{}, fmt.Errorf("%w: no USD quote for %s", feed.ErrTransient, ticker)
	}
	if !raw.Price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, ticker)
	}

	return feed.NewQuote(s.Name(), raw.Price).
		WithVolume(raw.Volume24Hour).
		WithChange(raw.ChangePct24Hour), nil
}
