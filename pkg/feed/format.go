package feed

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders a price in USD with two decimals, or eight decimals
// for sub-cent assets.
func FormatPrice(price decimal.NullDecimal) string {
	if !price.Valid {
		return "N/A"
	}
	v, _ := price.Decimal.Float64()
	if v >= 0.01 {
		return fmt.Sprintf("$%s", withThousandSeparators(price.Decimal.StringFixed(2)))
	}
	return fmt.Sprintf("$%s", price.Decimal.StringFixed(8))
}

// FormatChange renders a 24h percent change with an explicit sign.
func FormatChange(change decimal.NullDecimal) string {
	if !change.Valid {
		return "N/A"
	}
	s := change.Decimal.StringFixed(2) + "%"
	if change.Decimal.IsPositive() {
		return "+" + s
	}
	return s
}

// PlainText renders the envelope as unformatted text, one header line plus
// one line per contributing source. This is the fallback representation for
// delivery layers that cannot use rich formatting.
func (r Result) PlainText() string {
	if !r.HasData() {
		return fmt.Sprintf("%s: no price data available from any source", r.Ticker)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] from %d sources",
		r.Ticker, FormatPrice(r.AveragePrice), FormatChange(r.AverageChange24h), r.ActiveSources)
	if r.AverageVolume24h.Valid {
		fmt.Fprintf(&b, ", 24h volume %s", FormatPrice(r.AverageVolume24h))
	}
	for _, q := range r.Quotes {
		price := decimal.NullDecimal{Decimal: q.Price, Valid: true}
		fmt.Fprintf(&b, "\n- %s: %s [%s]", q.Source, FormatPrice(price), FormatChange(q.Change24h))
	}
	return b.String()
}

// withThousandSeparators inserts commas into the integer part of a fixed
// decimal string.
func withThousandSeparators(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
