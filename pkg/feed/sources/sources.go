// Package sources provides the price source adapter contract and the
// factory registry for venue implementations.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/purr/LiveCryptoPrice/pkg/feed"
	"github.com/purr/LiveCryptoPrice/pkg/feed/gateway"
	"github.com/purr/LiveCryptoPrice/pkg/logging"
)

// Source is one external price-data venue. Fetch translates the unified
// ticker into the venue's pair naming, issues the request through the shared
// gateway and normalizes the response into a quote or a classified failure
// from the feed error taxonomy.
type Source interface {
	// Name returns the unique name of this source.
	Name() string

	// Fetch returns the venue's current quote for an uppercase alphanumeric
	// ticker. Failures wrap exactly one of feed.ErrNotSupported,
	// feed.ErrRateLimited, feed.ErrTransient or feed.ErrProvider.
	Fetch(ctx context.Context, ticker string) (feed.Quote, error)
}

// Deps carries the shared collaborators injected into every source.
type Deps struct {
	Gateway *gateway.Client
	Logger  *logging.Logger
}

// Factory creates a Source from its venue-specific configuration block.
type Factory func(deps Deps, config map[string]interface{}) (Source, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a source factory to the registry. Called from venue package
// init functions.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Create instantiates a registered source by name.
func Create(name string, deps Deps, config map[string]interface{}) (Source, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return factory(deps, config)
}

// List returns all registered source names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseSource provides the common fields venue implementations embed.
type BaseSource struct {
	name    string
	gateway *gateway.Client
	logger  *logging.Logger
}

// NewBaseSource creates the embedded base for a venue source.
func NewBaseSource(name string, deps Deps) BaseSource {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return BaseSource{
		name:    name,
		gateway: deps.Gateway,
		logger:  logger.With("source", name),
	}
}

// Name returns the source name.
func (b *BaseSource) Name() string {
	return b.name
}

// Gateway returns the shared dispatch client.
func (b *BaseSource) Gateway() *gateway.Client {
	return b.gateway
}

// Logger returns the source-scoped logger.
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}
