package feed

import "errors"

// Fetch error taxonomy. Adapters classify every failure into exactly one of
// these by wrapping the sentinel, so callers can branch with errors.Is.
var (
	// ErrNotSupported indicates the venue definitively does not list the
	// ticker. This is the only class that may drive blacklisting.
	ErrNotSupported = errors.New("ticker not supported on venue")
	// ErrRateLimited indicates the venue rejected the call for rate-limit
	// reasons. Transient, must never drive blacklisting.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTransient indicates a timeout, network failure or a response that
	// could not be parsed.
	ErrTransient = errors.New("transient fetch failure")
	// ErrProvider indicates a venue-reported business error that matches no
	// other class.
	ErrProvider = errors.New("provider error")

	// ErrInvalidTicker indicates a ticker that is not an uppercase
	// alphanumeric symbol.
	ErrInvalidTicker = errors.New("invalid ticker symbol")
)

// IsNotSupported reports whether err is a definitive unknown-ticker failure.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsRateLimited reports whether err is rate-limit shaped.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether err is a transient network or parse failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ClassOf names the taxonomy class of err for logs and metrics.
func ClassOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsNotSupported(err):
		return "not_supported"
	case IsRateLimited(err):
		return "rate_limited"
	case IsTransient(err):
		return "transient"
	case errors.Is(err, ErrProvider):
		return "provider"
	default:
		return "other"
	}
}
