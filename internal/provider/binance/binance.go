// Package binance serves spot market data through the go-binance client.
package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	appconfig "cryptorank/config"
	"cryptorank/internal/models"
	"cryptorank/internal/provider"
	"cryptorank/internal/symbols"
	"cryptorank/logger"
)

// DefaultBaseURL targets binance.us, which the account runs against.
const DefaultBaseURL = "https://api.binance.us"

const (
	name = appconfig.ExchangeBinance

	codeInvalidSymbol = -1121
	maxKlineLimit     = 1000
	statusTrading     = "TRADING"
)

// Provider implements provider.MarketDataProvider for Binance spot.
type Provider struct {
	client *binance.Client
	quote  string
	log    *logger.Log
}

// New builds a Binance provider. Credentials are optional: every call used
// here is a public endpoint.
func New(cfg appconfig.ExchangeConfig, timeout time.Duration) *Provider {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = provider.NewHTTPClient(cfg.ConnectionPool, cfg.LocalIP, timeout)
	client.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	quote := cfg.Quote
	if quote == "" {
		quote = "USDT"
	}

	log := logger.GetLogger()
	log.WithComponent("binance_provider").WithFields(logger.Fields{
		"base_url":           client.BaseURL,
		"max_idle_conns":     cfg.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.ConnectionPool.MaxConnsPerHost,
		"local_ip":           cfg.LocalIP,
		"timeout":            timeout,
	}).Info("binance provider initialized")

	return &Provider{client: client, quote: quote, log: log}
}

func (p *Provider) Name() string { return name }

// ListAssets returns the base asset of every symbol currently trading.
func (p *Provider) ListAssets(ctx context.Context) (models.AssetSet, error) {
	info, err := p.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	out := models.NewAssetSet()
	for _, s := range info.Symbols {
		if s.Status != statusTrading {
			continue
		}
		if id := symbols.NormalizeAsset(name, s.BaseAsset); id != "" {
			out[id] = struct{}{}
		}
	}
	logger.LogDataFlowEntry(p.log.WithComponent("binance_provider"), "binance_api", "inventory", out.Len(), "assets")
	return out, nil
}

// FetchCandles returns the latest limit klines for asset against the quote.
func (p *Provider) FetchCandles(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) ([]models.RawCandle, error) {
	interval, err := symbols.Interval(name, g)
	if err != nil {
		return nil, err
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair := symbols.Pair(name, asset, p.quote)

	klines, err := p.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, wrapErr(pair, err)
	}

	out := make([]models.RawCandle, 0, len(klines))
	for _, k := range klines {
		out = append(out, models.RawCandle{
			OpenTime:            time.UnixMilli(k.OpenTime).UTC(),
			CloseTime:           time.UnixMilli(k.CloseTime).UTC(),
			Open:                k.Open,
			High:                k.High,
			Low:                 k.Low,
			Close:               k.Close,
			Volume:              k.Volume,
			TradeCount:          k.TradeNum,
			QuoteVolume:         k.QuoteAssetVolume,
			TakerBuyBaseVolume:  k.TakerBuyBaseAssetVolume,
			TakerBuyQuoteVolume: k.TakerBuyQuoteAssetVolume,
		})
	}
	return out, nil
}

// FetchSpotPrice returns the last traded price of asset against the quote.
func (p *Provider) FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error) {
	pair := symbols.Pair(name, asset, p.quote)

	prices, err := p.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, wrapErr(pair, err)
	}
	for _, sp := range prices {
		if sp.Symbol == pair {
			price, err := strconv.ParseFloat(sp.Price, 64)
			if err != nil {
				return 0, fmt.Errorf("parse price %s %q: %w", pair, sp.Price, err)
			}
			return price, nil
		}
	}
	return 0, fmt.Errorf("price %s: %w", pair, provider.ErrNotFound)
}

func wrapErr(pair string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
		return fmt.Errorf("%s: %w: %v", pair, provider.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", pair, err)
}
