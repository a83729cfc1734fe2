package gateway

import (
	"fmt"

	"micro-trade-bot-go/internal/config"

	"go.uber.org/zap"
)

// Registry resolves a trading platform name from the per-asset settings to
// a concrete gateway. Platforms without configured credentials are left
// unregistered so a misconfigured asset fails before any state mutation.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds gateways for every platform with credentials in the
// config. The paper gateway is always available.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	gateways := map[string]Gateway{
		"paper": NewPaperGateway(logger.Named("paper")),
	}
	if cfg.Exchanges.Binance.ApiKey != "" {
		gateways["binance"] = NewBinanceGateway(&cfg.Exchanges.Binance, logger.Named("binance"))
	}
	if cfg.Exchanges.Kraken.ApiKey != "" {
		gateways["kraken"] = NewKrakenGateway(&cfg.Exchanges.Kraken, logger.Named("kraken"))
	}
	return &Registry{gateways: gateways}
}

// Resolve returns the gateway for the given platform name.
func (r *Registry) Resolve(platform string) (Gateway, error) {
	gw, ok := r.gateways[platform]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for trading platform %q", platform)
	}
	return gw, nil
}
