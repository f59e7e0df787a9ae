package sources

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/gateway"
)

// unknownAssetTerms are the phrases venues use in 400/404 bodies when a
// trading pair does not exist.
var unknownAssetTerms = []string{
	"unknown", "not found", "not exist", "invalid", "pair", "symbol", "no data for",
}

// ClassifyResponse maps a non-200 HTTP response into the feed error
// taxonomy. 400/404 bodies with unknown-asset phrasing are definitive
// NotSupported; anything else is a provider error.
func ClassifyResponse(resp *gateway.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		if LooksLikeUnknownAsset(string(resp.Body)) {
			return fmt.Errorf("%w: HTTP %d: %s", feed.ErrNotSupported, resp.StatusCode, truncate(resp.Body))
		}
	}
	return fmt.Errorf("%w: HTTP %d: %s", feed.ErrProvider, resp.StatusCode, truncate(resp.Body))
}

// LooksLikeUnknownAsset reports whether an error message reads like a
// definitive unknown-pair rejection.
func LooksLikeUnknownAsset(message string) bool {
	lower := strings.ToLower(message)
	for _, term := range unknownAssetTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// PercentChange derives a 24h percent change from open and close prices.
// Venues that report no percentage expose open/close instead.
func PercentChange(open, last decimal.Decimal) (decimal.Decimal, bool) {
	if open.IsZero() {
		return decimal.Zero, false
	}
	return last.Sub(open).Div(open).Mul(decimal.NewFromInt(100)), true
}

// ParseDecimal parses a venue decimal string into a transient-classified
// error on failure, since a malformed number means a malformed response.
func ParseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: parsing %s %q: %v", feed.ErrTransient, field, value, err)
	}
	return d, nil
}

func truncate(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
