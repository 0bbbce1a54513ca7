// Package bybit serves spot market data through the Bybit v5 REST client.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	appconfig "cryptorank/config"
	"cryptorank/internal/models"
	"cryptorank/internal/provider"
	"cryptorank/internal/symbols"
	"cryptorank/logger"
)

const DefaultBaseURL = "https://api.bybit.com"

const (
	name     = appconfig.ExchangeBybit
	category = "spot"

	retCodeInvalidSymbol = 10001
	maxKlineLimit        = 1000
	statusTrading        = "Trading"
)

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

type instrumentsResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// Provider implements provider.MarketDataProvider for Bybit spot.
type Provider struct {
	client *bybit.Client
	quote  string
	log    *logger.Log
}

func New(cfg appconfig.ExchangeConfig, timeout time.Duration) *Provider {
	base := DefaultBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}

	client := bybit.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit.WithBaseURL(base))
	client.HTTPClient = provider.NewHTTPClient(cfg.ConnectionPool, cfg.LocalIP, timeout)

	quote := cfg.Quote
	if quote == "" {
		quote = "USDT"
	}

	log := logger.GetLogger()
	log.WithComponent("bybit_provider").WithFields(logger.Fields{
		"base_url": base,
		"local_ip": cfg.LocalIP,
		"timeout":  timeout,
	}).Info("bybit provider initialized")

	return &Provider{client: client, quote: quote, log: log}
}

func (p *Provider) Name() string { return name }

// ListAssets returns the base coins of every spot instrument in Trading
// status, following the pagination cursor.
func (p *Provider) ListAssets(ctx context.Context) (models.AssetSet, error) {
	out := models.NewAssetSet()
	cursor := ""
	for {
		params := map[string]interface{}{"category": category, "limit": 1000}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp, err := p.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		var res instrumentsResult
		if err := decode(resp, err, "instruments", &res); err != nil {
			return nil, err
		}
		for _, inst := range res.List {
			if inst.Status != statusTrading {
				continue
			}
			if id := symbols.NormalizeAsset(name, inst.BaseCoin); id != "" {
				out[id] = struct{}{}
			}
		}
		if res.NextPageCursor == "" || res.NextPageCursor == cursor {
			break
		}
		cursor = res.NextPageCursor
	}
	logger.LogDataFlowEntry(p.log.WithComponent("bybit_provider"), "bybit_api", "inventory", out.Len(), "assets")
	return out, nil
}

// FetchCandles returns up to limit klines in ascending time order. Bybit
// reports neither close time nor trade count; close time is derived from the
// interval and the count is left at zero.
func (p *Provider) FetchCandles(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) ([]models.RawCandle, error) {
	interval, err := symbols.Interval(name, g)
	if err != nil {
		return nil, err
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair := symbols.Pair(name, asset, p.quote)

	params := map[string]interface{}{
		"category": category,
		"symbol":   pair,
		"interval": interval,
		"limit":    limit,
	}
	resp, err := p.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	var res klineResult
	if err := decode(resp, err, pair, &res); err != nil {
		return nil, err
	}

	out := make([]models.RawCandle, 0, len(res.List))
	for i := len(res.List) - 1; i >= 0; i-- {
		row := res.List[i]
		if len(row) < 7 {
			return nil, fmt.Errorf("%s: kline row has %d fields", pair, len(row))
		}
		startMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: kline start %q: %w", pair, row[0], err)
		}
		open := time.UnixMilli(startMs).UTC()
		out = append(out, models.RawCandle{
			OpenTime:    open,
			CloseTime:   open.Add(g.Duration() - time.Millisecond),
			Open:        row[1],
			High:        row[2],
			Low:         row[3],
			Close:       row[4],
			Volume:      row[5],
			QuoteVolume: row[6],
		})
	}
	return out, nil
}

func (p *Provider) FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error) {
	pair := symbols.Pair(name, asset, p.quote)

	params := map[string]interface{}{"category": category, "symbol": pair}
	resp, err := p.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	var res tickersResult
	if err := decode(resp, err, pair, &res); err != nil {
		return 0, err
	}
	for _, t := range res.List {
		if t.Symbol == pair {
			price, err := strconv.ParseFloat(t.LastPrice, 64)
			if err != nil {
				return 0, fmt.Errorf("parse price %s %q: %w", pair, t.LastPrice, err)
			}
			return price, nil
		}
	}
	return 0, fmt.Errorf("ticker %s: %w", pair, provider.ErrNotFound)
}

// decode checks the envelope and re-decodes its result into dst.
func decode(resp *bybit.ServerResponse, err error, what string, dst interface{}) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if resp == nil {
		return fmt.Errorf("%s: empty response", what)
	}
	if resp.RetCode != 0 {
		if resp.RetCode == retCodeInvalidSymbol || strings.Contains(strings.ToLower(resp.RetMsg), "symbol invalid") {
			return fmt.Errorf("%s: %w: retCode=%d %s", what, provider.ErrNotFound, resp.RetCode, resp.RetMsg)
		}
		return fmt.Errorf("%s: retCode=%d %s", what, resp.RetCode, resp.RetMsg)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("%s: marshal result: %w", what, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%s: decode result: %w", what, err)
	}
	return nil
}
