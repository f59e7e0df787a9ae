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

const krakenAPIURL = "https://api.kraken.com/0/public"

// krakenAssetCodes maps unified tickers to Kraken asset codes where they
// differ.
var krakenAssetCodes = map[string]string{
	"BTC": "XBT",
}

// KrakenSource fetches spot prices from the Kraken REST API. Kraken lists
// the same base asset under several legacy pair-naming schemes, so the
// source probes an ordered list of candidate pair identifiers and stops at
// the first success.
type KrakenSource struct {
	sources.BaseSource

	apiURL string
}

// KrakenTickerData represents ticker data for a single pair.
type KrakenTickerData struct {
	C []string `json:"c"` // Last trade [price, lot volume]
	V []string `json:"v"` // Volume [today, last 24 hours]
	O string   `json:"o"` // Today's opening price
}

// KrakenResponse represents the Ticker endpoint response.
type KrakenResponse struct {
	Error  []string                    `json:"error"`
	Result map[string]KrakenTickerData `json:"result"`
}

// NewKrakenSource creates a new Kraken source.
func NewKrakenSource(deps sources.Deps, config map[string]interface{}) (sources.Source, error) {
	s := &KrakenSource{
		BaseSource: sources.NewBaseSource("kraken", deps),
		apiURL:     krakenAPIURL,
	}
	if u, ok := config["api_url"].(string); ok && u != "" {
		s.apiURL = u
	}
	return s, nil
}

// pairCandidates returns the ordered pair identifiers to probe for a ticker.
func (s *KrakenSource) pairCandidates(ticker string) []string {
	code := ticker
	if mapped, ok := krakenAssetCodes[ticker]; ok {
		code = mapped
	}

	candidates := []string{
		code + "USD",
		code + "USDT",
		"X" + code + "ZUSD",
		code + "ZUSD",
		"X" + code + "USD",
	}
	if ticker == "BTC" {
		candidates = append([]string{"XXBTZUSD", "XBTUSD", "XBTZUSD"}, candidates...)
	}
	return candidates
}

// Fetch probes candidate pair formats until one resolves. Exhausting the
// list counts as NotSupported only when at least one attempt got a
// definitive unknown-pair rejection; a run of purely transient failures
// must not drive blacklisting.
func (s *KrakenSource) Fetch(ctx context.Context, ticker string) (feed.Quote, error) {
	definitiveRejections := 0
	var lastErr error

	for _, pair := range s.pairCandidates(ticker) {
		quote, err := s.fetchPair(ctx, ticker, pair)
		if err == nil {
			return quote, nil
		}
		if feed.IsRateLimited(err) {
			return feed.Quote{}, err
		}
		if feed.IsNotSupported(err) {
			definitiveRejections++
		}
		lastErr = err
		s.Logger().Debug("Kraken pair format failed", "ticker", ticker, "pair", pair, "error", err)
	}

	if definitiveRejections > 0 {
		return feed.Quote{}, fmt.Errorf("%w: no valid Kraken pair format for %s", feed.ErrNotSupported, ticker)
	}
	if lastErr != nil {
		return feed.Quote{}, lastErr
	}
	return feed.Quote{}, fmt.Errorf("%w: no candidate pairs for %s", feed.ErrTransient, ticker)
}

func (s *KrakenSource) fetchPair(ctx context.Context, ticker, pair string) (feed.Quote, error) {
	reqURL := fmt.Sprintf("%s/Ticker?pair=%s", s.apiURL, url.QueryEscape(pair))

	resp, err := s.Gateway().Get(ctx, reqURL)
	if err != nil {
		return feed.Quote{}, err
	}
	if err := sources.ClassifyResponse(resp); err != nil {
		return feed.Quote{}, err
	}

	var data KrakenResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return feed.Quote{}, fmt.Errorf("%w: unmarshaling ticker: %v", feed.ErrTransient, err)
	}

	if len(data.Error) > 0 {
		msg := strings.ToLower(data.Error[0])
		switch {
		case strings.Contains(msg, "unknown asset pair"):
			return feed.Quote{}, fmt.Errorf("%w: %s on kraken", feed.ErrNotSupported, pair)
		case strings.Contains(msg, "rate limit"):
			return feed.Quote{}, fmt.Errorf("%w: kraken: %s", feed.ErrRateLimited, data.Error[0])
		default:
			return feed.Quote{}, fmt.Errorf("%w: kraken: %s", feed.ErrProvider, data.Error[0])
		}
	}

	// Kraken may answer under a slightly different key than requested; take
	// the requested pair when present, otherwise the first result.
	tickerData, ok := data.Result[pair]
	if !ok {
		for _, v := range data.Result {
			tickerData = v
			ok = true
			break
		}
	}
	if !ok || len(tickerData.C) == 0 {
		return feed.Quote{}, fmt.Errorf("%w: empty result for %s", feed.ErrTransient, pair)
	}

	price, err := sources.ParseDecimal("last trade price", tickerData.C[0])
	if err != nil {
		return feed.Quote{}, err
	}
	if !price.IsPositive() {
		return feed.Quote{}, fmt.Errorf("%w: non-positive price for %s", feed.ErrProvider, pair)
	}

	quote := feed.NewQuote(s.Name(), price)
	if len(tickerData.V) > 1 {
		if v, err := sources.ParseDecimal("volume", tickerData.V[1]); err == nil {
			quote = quote.WithVolume(v)
		}
	}
	// Kraken has no 24h percent field; derive it from the opening price.
	if open, err := sources.ParseDecimal("open", tickerData.O); err == nil {
		if change, ok := sources.PercentChange(open, price); ok {
			quote = quote.WithChange(change)
		}
	}
	return quote, nil
}
