package feed

import (
	"fmt"
	"strings"
)

// NormalizeTicker uppercases and validates a ticker symbol.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if err := ValidateTicker(t); err != nil {
		return "", err
	}
	return t, nil
}

// ValidateTicker checks that a ticker is a non-empty uppercase alphanumeric
// symbol (e.g. "BTC", "AVAX", "1INCH").
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidTicker)
	}
	for _, r := range ticker {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
		}
	}
	return nil
}
