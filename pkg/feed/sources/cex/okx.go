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

const okxAPIURL = "https://www.okx.com/api/v5"

// OKXSource fetches spot prices from the OKX REST API.
type OKXSource struct {
	sources.BaseSource

	apiURL string
}

// OKXTicker represents one instrument from /market/ticker.
type OKXTicker struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	Open24h string `json:"open24h"`
	Vol24h  string `json:"vol24h"`
}

// OKXResponse represents the /market/ticker envelope.
type OKXResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []OKXTicker `json:"data"`
}

// NewOKXSource creates a new OKX source.
func NewOKXSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &OKXSource{
		BaseSource: sources.NewBaseSource("okx", deps),
		apiURL:     okxAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the OKX quote for a ticker. The 24h percent change is
// derived from the 24h open.
func (s *OKXSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := ticker + "-USDT"
	reqURL := fmt.Sprintf("%s/market/ticker?instId=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data OKXResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	if data.Code != "0" {
		msg := strings.ToLower(data.Msg)
		switch {
		case strings.Contains(msg, "not exist") || strings.Contains(msg, "not found") || strings.Contains(msg, "invalid"):
			return feed.Quote{}, fmt.Errorf("%w: %s on okx: %s", feed.ErrNotSupported, pair, data.Msg)
		case strings.Contains(msg, "too many requests"):
			return feed.Quote{}, fmt.Errorf("%w: okx: %s", feed.ErrRateLimited, data.Msg)
		default:
			return feed.Quote{}, fmt.Errorf("%w: okx: %s", feed.ErrProvider, data.Msg)
		}
	}
	if len(data.Data) == 0 {
		return feed.Quote{}, fmt.Errorf("%w: empty data for %s", feed.ErrTransient, pair)
	}

	t := data.Data[0]
	price, err := sources.ParseDecimal("last", t.Last)
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if v, err := sources.ParseDecimal("vol24h", t.Vol24h); err == nil {
		quote = quote.WithVolume(v)
	}
	if open, err := sources.ParseDecimal("open24h", t.Open24h); err == nil {
		if change, ok := sources.PercentChange(open, price); ok {
			quote = quote.WithChange(change)
		}
	}
	return quote, nil
}
