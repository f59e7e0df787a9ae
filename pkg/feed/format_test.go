package feed

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func nd(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name  string
		price decimal.NullDecimal
		want  string
	}{
		{"null", decimal.NullDecimal{}, "N/A"},
		{"whole", nd(65000), "$65,000.00"},
		{"cents", nd(1.5), "$1.50"},
		{"millions", nd(1234567.89), "$1,234,567.89"},
		{"sub-cent", nd(0.00012345), "$0.00012345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.price))
		})
	}
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "N/A", FormatChange(decimal.NullDecimal{}))
	assert.Equal(t, "+5.00%", FormatChange(nd(5)))
	assert.Equal(t, "-3.25%", FormatChange(nd(-3.25)))
	assert.Equal(t, "0.00%", FormatChange(nd(0)))
}

func TestResult_PlainText(t *testing.T) {
	r := Result{
		Ticker: "BTC",
		Quotes: []Quote{
			NewQuote("binance", decimal.NewFromInt(100)).WithChange(decimal.NewFromInt(5)),
			NewQuote("kraken", decimal.NewFromInt(102)),
		},
		AveragePrice:     nd(101),
		AverageChange24h: nd(5),
		ActiveSources:    2,
	}

	text := r.PlainText()
	lines := strings.Split(text, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "BTC $101.00 [+5.00%] from 2 sources", lines[0])
	assert.Equal(t, "- binance: $100.00 [+5.00%]", lines[1])
	assert.Equal(t, "- kraken: $102.00 [N/A]", lines[2])
}

func TestResult_PlainTextWithVolume(t *testing.T) {
	r := Result{
		Ticker:           "ETH",
		Quotes:           []Quote{NewQuote("binance", decimal.NewFromInt(3400))},
		AveragePrice:     nd(3400),
		AverageVolume24h: nd(1500000),
		ActiveSources:    1,
	}
	assert.Contains(t, r.PlainText(), "24h volume $1,500,000.00")
}

func TestResult_PlainTextNoData(t *testing.T) {
	r := Result{Ticker: "NOPE"}
	assert.Contains(t, r.PlainText(), "no price data available")
}
