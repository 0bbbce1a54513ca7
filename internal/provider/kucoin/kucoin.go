// Package kucoin serves spot market data through the KuCoin universal SDK.
package kucoin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sdkapi "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	spotmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"

	appconfig "cryptorank/config"
	"cryptorank/internal/models"
	"cryptorank/internal/provider"
	"cryptorank/internal/symbols"
	"cryptorank/logger"
)

const DefaultBaseURL = "https://api.kucoin.com"

const (
	name          = appconfig.ExchangeKucoin
	maxKlineLimit = 1500
)

// The SDK reports API failures as plain text carrying the KuCoin code.
// 400100 rejects the request parameters and 900001 an unknown pair.
var invalidSymbolCodes = []string{"400100", "900001"}

// marketAPI is the part of the SDK spot market API used here.
type marketAPI interface {
	GetAllSymbols(req *spotmarket.GetAllSymbolsReq, ctx context.Context) (*spotmarket.GetAllSymbolsResp, error)
	GetKlines(req *spotmarket.GetKlinesReq, ctx context.Context) (*spotmarket.GetKlinesResp, error)
	GetTicker(req *spotmarket.GetTickerReq, ctx context.Context) (*spotmarket.GetTickerResp, error)
}

// Provider implements provider.MarketDataProvider for KuCoin spot.
type Provider struct {
	market marketAPI
	quote  string
	log    *logger.Log
	now    func() time.Time
}

func New(cfg appconfig.ExchangeConfig, timeout time.Duration) *Provider {
	log := logger.GetLogger()

	baseURL := DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(cfg.ConnectionPool.MaxIdleConns).
		SetMaxIdleConnsPerHost(cfg.ConnectionPool.MaxIdleConns).
		SetMaxConnsPerHost(cfg.ConnectionPool.MaxConnsPerHost).
		SetIdleConnTimeout(cfg.ConnectionPool.IdleConnTimeout).
		SetTimeout(timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithKey(cfg.APIKey).
		WithSecret(cfg.APISecret).
		WithPassphrase(cfg.Passphrase).
		WithSpotEndpoint(baseURL).
		WithTransportOption(transportOpt).
		Build()

	client := sdkapi.NewClient(option)
	market := client.RestService().GetSpotService().GetMarketAPI()

	entry := log.WithComponent("kucoin_provider").WithFields(logger.Fields{
		"base_url": baseURL,
		"timeout":  timeout,
	})
	if cfg.LocalIP != "" {
		entry.WithFields(logger.Fields{"local_ip": cfg.LocalIP}).Warn("local_ip is not applied to the kucoin sdk transport")
	}
	entry.Info("kucoin provider initialized")

	return newProvider(market, cfg.Quote, log)
}

func newProvider(market marketAPI, quote string, log *logger.Log) *Provider {
	if quote == "" {
		quote = "USDT"
	}
	return &Provider{market: market, quote: quote, log: log, now: time.Now}
}

func (p *Provider) Name() string { return name }

// ListAssets returns the base currency of every symbol open for trading.
func (p *Provider) ListAssets(ctx context.Context) (models.AssetSet, error) {
	resp, err := p.market.GetAllSymbols(spotmarket.NewGetAllSymbolsReqBuilder().Build(), ctx)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("symbols: empty response")
	}

	out := models.NewAssetSet()
	for _, s := range resp.Data {
		if !s.EnableTrading {
			continue
		}
		if id := symbols.NormalizeAsset(name, s.BaseCurrency); id != "" {
			out[id] = struct{}{}
		}
	}
	logger.LogDataFlowEntry(p.log.WithComponent("kucoin_provider"), "kucoin_api", "inventory", out.Len(), "assets")
	return out, nil
}

// FetchCandles requests the window covering the last limit intervals and
// returns it oldest first. KuCoin reports neither close time nor trade count;
// close time is derived from the interval and the count is left at zero.
func (p *Provider) FetchCandles(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) ([]models.RawCandle, error) {
	interval, err := symbols.Interval(name, g)
	if err != nil {
		return nil, err
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair := symbols.Pair(name, asset, p.quote)

	end := p.now().UTC()
	start := end.Add(-time.Duration(limit+1) * g.Duration())
	req := spotmarket.NewGetKlinesReqBuilder().
		SetSymbol(pair).
		SetType(interval).
		SetStartAt(start.Unix()).
		SetEndAt(end.Unix()).
		Build()

	resp, err := p.market.GetKlines(req, ctx)
	if err != nil {
		return nil, wrapErr(pair, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s: empty response", pair)
	}

	out := make([]models.RawCandle, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		row := resp.Data[i]
		if len(row) < 7 {
			return nil, fmt.Errorf("%s: kline row has %d fields", pair, len(row))
		}
		sec, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: kline time %q: %w", pair, row[0], err)
		}
		open := time.Unix(sec, 0).UTC()
		// row layout: time, open, close, high, low, volume, turnover
		out = append(out, models.RawCandle{
			OpenTime:    open,
			CloseTime:   open.Add(g.Duration() - time.Millisecond),
			Open:        row[1],
			Close:       row[2],
			High:        row[3],
			Low:         row[4],
			Volume:      row[5],
			QuoteVolume: row[6],
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (p *Provider) FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error) {
	pair := symbols.Pair(name, asset, p.quote)

	resp, err := p.market.GetTicker(spotmarket.NewGetTickerReqBuilder().SetSymbol(pair).Build(), ctx)
	if err != nil {
		return 0, wrapErr(pair, err)
	}
	if resp == nil || resp.Price == "" {
		return 0, fmt.Errorf("ticker %s: %w", pair, provider.ErrNotFound)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %s %q: %w", pair, resp.Price, err)
	}
	return price, nil
}

// wrapErr marks rejected pairs with provider.ErrNotFound so they are not
// retried.
func wrapErr(pair string, err error) error {
	msg := err.Error()
	for _, code := range invalidSymbolCodes {
		if strings.Contains(msg, "code:{"+code+"}") || strings.Contains(msg, `"code":"`+code+`"`) {
			return fmt.Errorf("%s: %w: %w", pair, provider.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", pair, err)
}
