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

const kucoinAPIURL = "https://api.kucoin.com/api/v1"

// KuCoinSource fetches spot prices from the KuCoin REST API.
type KuCoinSource struct {
	sources.BaseSource

	apiURL string
}

// KuCoinStats represents the /market/stats data block.
type KuCoinStats struct {
	Symbol     string `json:"symbol"`
	Last       string `json:"last"`
	Vol        string `json:"vol"`
	ChangeRate string `json:"changeRate"`
}

// KuCoinResponse represents the standard KuCoin envelope.
type KuCoinResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data KuCoinStats `json:"data"`
}

// NewKuCoinSource creates a new KuCoin source.
func NewKuCoinSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &KuCoinSource{
		BaseSource: sources.NewBaseSource("kucoin", deps),
		apiURL:     kucoinAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// Fetch returns the KuCoin quote for a ticker. KuCoin reports the 24h
// change as a rate, converted here to a percentage.
func (s *KuCoinSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	pair := ticker + "-USDT"
	reqURL := fmt.Sprintf("%s/market/stats?symbol=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data KuCoinResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling response: %v", feed.ErrTransient, err)
	}

	if data.Code != "200000" {
		msg := strings.ToLower(data.Msg)
		switch {
		case strings.Contains(msg, "symbol") && (strings.Contains(msg, "not exist") || strings.Contains(msg, "invalid")):
			return feed.Quote{}, fmt.Errorf("%w: %s on kucoin: %s", feed.ErrNotSupported, pair, data.Msg)
		case strings.Contains(msg, "too many requests"):
			return feed.Quote{}, fmt.Errorf("%w: kucoin: %s", feed.ErrRateLimited, data.Msg)
		default:
			return feed.Quote{}, fmt.Errorf("%w: kucoin: %s", feed.ErrProvider, data.Msg)
		}
	}

	// KuCoin answers unknown symbols with code 200000 and an empty data
	// block, so a missing last price is a definitive miss.
	if data.Data.Last == "" {
		return feed.Quote{}, fmt.Errorf("%w: %s on kucoin", feed.ErrNotSupported, pair)
	}

	price, err := sources.ParseDecimal("last", data.Data.Last)
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if v, err := sources.ParseDecimal("vol", data.Data.Vol); err == nil {
		quote = quote.WithVolume(v)
	}
	if rate, err := sources.ParseDecimal("changeRate", data.Data.ChangeRate); err == nil {
		quote = quote.WithChange(rate.Mul(decimal.NewFromInt(100)))
	}
	return quote, nil
}
