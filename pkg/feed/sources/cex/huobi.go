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

const huobiAPIURL = "https://api.huobi.pro"

// HuobiSource fetches spot prices from the Huobi REST API.
type HuobiSource struct {
	sources.BaseSource

	apiURL string
}

// HuobiMergedTick represents the merged market detail for one pair.
type HuobiMergedTick struct {
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Vol   decimal.Decimal `json:"vol"`
}

// HuobiMergedResponse represents /market/detail/merged.
type HuobiMergedResponse struct {
	Status string          `json:"status"`
	ErrMsg string          `json:"err-msg"`
	Tick   HuobiMergedTick `json:"tick"`
}

// NewHuobiSource creates a new Huobi source.
func NewHuobiSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &HuobiSource{
		BaseSource: sources.NewBaseSource("huobi", deps),
		apiURL:     huobiAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the Huobi quote for a ticker. Huobi reports no 24h percent
// change; it is derived from the 24h open and last close.
func (s *HuobiSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := strings.ToLower(ticker) + "usdt"
	reqURL := fmt.Sprintf("%s/market/detail/merged?symbol=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data HuobiMergedResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	if data.Status != "ok" {
		msg := strings.ToLower(data.ErrMsg)
		if strings.Contains(msg, "symbol") && (strings.Contains(msg, "invalid") || strings.Contains(msg, "not found")) {
			return feed.Quote{}, fmt.Errorf("%w: %s on huobi: %s", feed.ErrNotSupported, pair, data.ErrMsg)
		}
		return feed.Quote{}, fmt.Errorf("%w: huobi: %s", feed.ErrProvider, data.ErrMsg)
	}

	price := data.Tick.Close
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price).WithVolume(data.Tick.Vol)
	if change, ok := sources.PercentChange(data.Tick.Open, price); ok {
		quote = quote.WithChange(change)
	}
	return quote, nil
}
