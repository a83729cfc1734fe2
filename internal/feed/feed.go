// Package feed contains the price feed adapters. Each provider delivers
// {symbol, price} ticks to a Handler; everything else (subscription
// payloads, reconnects) is provider-specific and stays in here.
package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Handler receives one price tick for a symbol.
type Handler func(symbol string, price float64)

// Provider is a price feed source that can stream ticks for a symbol until
// the context is cancelled.
type Provider interface {
	Name() string
	Subscribe(ctx context.Context, symbol string, handler Handler) error
}

// Registry resolves a websocket provider name from the per-asset settings.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds all supported feed providers.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		providers: map[string]Provider{
			"binance": NewBinanceFeed(logger.Named("binance-feed")),
			"kraken":  NewKrakenFeed(logger.Named("kraken-feed")),
		},
	}
}

// Register adds or replaces a provider under its own name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Resolve returns the provider for the given name.
func (r *Registry) Resolve(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no feed provider %q", name)
	}
	return p, nil
}
