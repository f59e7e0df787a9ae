// Package aggregator fans a price request out to every eligible source
// and folds the responses into a single averaged result.
package aggregator

import "errors"

var (
	// ErrNoSources indicates that the aggregator was built without any sources.
	ErrNoSources = errors.New("no sources configured")
)
