package kucoin

import (
	"context"
	"errors"
	"testing"
	"time"

	spotmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"

	"cryptorank/internal/models"
	"cryptorank/internal/provider"
	"cryptorank/logger"
)

type fakeMarket struct {
	symbols []spotmarket.GetAllSymbolsData
	klines  [][]string
	prices  map[string]string
	err     error

	klineReq *spotmarket.GetKlinesReq
}

func (f *fakeMarket) GetAllSymbols(req *spotmarket.GetAllSymbolsReq, ctx context.Context) (*spotmarket.GetAllSymbolsResp, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &spotmarket.GetAllSymbolsResp{Data: f.symbols}, nil
}

func (f *fakeMarket) GetKlines(req *spotmarket.GetKlinesReq, ctx context.Context) (*spotmarket.GetKlinesResp, error) {
	f.klineReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &spotmarket.GetKlinesResp{Data: f.klines}, nil
}

func (f *fakeMarket) GetTicker(req *spotmarket.GetTickerReq, ctx context.Context) (*spotmarket.GetTickerResp, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &spotmarket.GetTickerResp{Price: f.prices[*req.Symbol]}, nil
}

func TestListAssetsSkipsDisabledSymbols(t *testing.T) {
	m := &fakeMarket{symbols: []spotmarket.GetAllSymbolsData{
		{Symbol: "BTC-USDT", BaseCurrency: "BTC", QuoteCurrency: "USDT", EnableTrading: true},
		{Symbol: "XBT-USDT", BaseCurrency: "XBT", QuoteCurrency: "USDT", EnableTrading: true},
		{Symbol: "ETH-USDT", BaseCurrency: "ETH", QuoteCurrency: "USDT", EnableTrading: true},
		{Symbol: "LUNA-USDT", BaseCurrency: "LUNA", QuoteCurrency: "USDT", EnableTrading: false},
	}}
	p := newProvider(m, "USDT", logger.GetLogger())

	assets, err := p.ListAssets(context.Background())
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if !assets.Equal(models.NewAssetSet("BTC", "ETH")) {
		t.Fatalf("unexpected assets %s", assets)
	}
}

func TestFetchCandlesReordersColumnsAndRows(t *testing.T) {
	m := &fakeMarket{klines: [][]string{
		{"1700000120", "3", "4", "5", "2", "30", "120"},
		{"1700000060", "2", "3", "4", "1", "20", "60"},
		{"1700000000", "1", "2", "3", "0.5", "10", "15"},
	}}
	p := newProvider(m, "USDT", logger.GetLogger())
	now := time.Unix(1700000180, 0)
	p.now = func() time.Time { return now }

	candles, err := p.FetchCandles(context.Background(), "BTC", models.Minute1, 2)
	if err != nil {
		t.Fatalf("fetch candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected truncation to 2 candles, got %d", len(candles))
	}
	c := candles[0]
	if !c.OpenTime.Equal(time.Unix(1700000060, 0)) {
		t.Fatalf("unexpected first open time %v", c.OpenTime)
	}
	if c.Open != "2" || c.Close != "3" || c.High != "4" || c.Low != "1" || c.Volume != "20" {
		t.Fatalf("columns not mapped: %+v", c)
	}
	if !c.CloseTime.Equal(time.Unix(1700000120, 0).Add(-time.Millisecond)) {
		t.Fatalf("unexpected close time %v", c.CloseTime)
	}

	req := m.klineReq
	if *req.Symbol != "BTC-USDT" || *req.Type != "1min" || *req.EndAt != now.Unix() || *req.StartAt != now.Add(-3*time.Minute).Unix() {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestFetchSpotPrice(t *testing.T) {
	m := &fakeMarket{prices: map[string]string{"BTC-USDT": "65000"}}
	p := newProvider(m, "USDT", logger.GetLogger())

	price, err := p.FetchSpotPrice(context.Background(), "BTC")
	if err != nil || price != 65000 {
		t.Fatalf("expected 65000, got %v (%v)", price, err)
	}
	if _, err := p.FetchSpotPrice(context.Background(), "ETH"); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestErrorsAreWrapped(t *testing.T) {
	boom := errors.New("429000 too many requests")
	p := newProvider(&fakeMarket{err: boom}, "USDT", logger.GetLogger())

	if _, err := p.FetchCandles(context.Background(), "BTC", models.Minute5, 10); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := p.ListAssets(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestInvalidSymbolIsNotFound(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "api code", err: errors.New("server return error, code:{900001}, msg: {Trading pair does not exist}"), notFound: true},
		{name: "http body", err: errors.New(`invalid status code: 400, msg: {"code":"400100","msg":"This pair is not provided at present"}`), notFound: true},
		{name: "rate limit", err: errors.New("server return error, code:{429000}, msg: {Too Many Requests}")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProvider(&fakeMarket{err: tc.err}, "USDT", logger.GetLogger())

			_, err := p.FetchCandles(context.Background(), "NOPE", models.Minute1, 10)
			if got := errors.Is(err, provider.ErrNotFound); got != tc.notFound {
				t.Fatalf("candles: ErrNotFound=%v, want %v (%v)", got, tc.notFound, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("candles: original error lost: %v", err)
			}
			_, err = p.FetchSpotPrice(context.Background(), "NOPE")
			if got := errors.Is(err, provider.ErrNotFound); got != tc.notFound {
				t.Fatalf("ticker: ErrNotFound=%v, want %v (%v)", got, tc.notFound, err)
			}
		})
	}
}
