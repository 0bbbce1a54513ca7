// Package registry builds guarded exchange providers from configuration.
package registry

import (
	"fmt"
	"strings"

	appconfig "cryptorank/config"
	"cryptorank/internal/provider"
	"cryptorank/internal/provider/binance"
	"cryptorank/internal/provider/bybit"
	"cryptorank/internal/provider/kucoin"
)

// Providers holds one provider per data role. Roles naming the same
// exchange share an instance, and with it a rate limiter.
type Providers struct {
	InventoryA provider.MarketDataProvider
	InventoryB provider.MarketDataProvider
	Candles    provider.MarketDataProvider
	Prices     provider.MarketDataProvider
}

// New returns the unguarded adapter for an exchange name.
func New(name string, cfg *appconfig.Config) (provider.MarketDataProvider, error) {
	ex := cfg.Exchange(name)
	switch strings.ToLower(name) {
	case appconfig.ExchangeBinance:
		return binance.New(ex, cfg.Reader.Timeout), nil
	case appconfig.ExchangeKucoin:
		return kucoin.New(ex, cfg.Reader.Timeout), nil
	case appconfig.ExchangeBybit:
		return bybit.New(ex, cfg.Reader.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
}

// Build creates a guarded provider for every configured role.
func Build(cfg *appconfig.Config) (*Providers, error) {
	return build(cfg, New)
}

func build(cfg *appconfig.Config, factory func(string, *appconfig.Config) (provider.MarketDataProvider, error)) (*Providers, error) {
	byName := make(map[string]provider.MarketDataProvider)
	for _, name := range cfg.Roles() {
		p, err := factory(name, cfg)
		if err != nil {
			return nil, err
		}
		byName[name] = provider.Guard(p, cfg.Reader)
	}

	pick := func(name string) provider.MarketDataProvider { return byName[strings.ToLower(name)] }
	return &Providers{
		InventoryA: pick(cfg.Exchanges.InventoryA),
		InventoryB: pick(cfg.Exchanges.InventoryB),
		Candles:    pick(cfg.Exchanges.Candles),
		Prices:     pick(cfg.Exchanges.Prices),
	}, nil
}
