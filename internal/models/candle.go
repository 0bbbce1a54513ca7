package models

import "time"

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// CANDLES //////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// RawCandle is one kline as delivered by an exchange. Numeric fields keep
// their wire representation; the extras are dropped by the feature projection.
type RawCandle struct {
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	Open       string    `json:"open"`
	High       string    `json:"high"`
	Low        string    `json:"low"`
	Close      string    `json:"close"`
	Volume     string    `json:"volume"`
	TradeCount int64     `json:"trade_count"`

	QuoteVolume         string `json:"quote_volume,omitempty"`
	TakerBuyBaseVolume  string `json:"taker_buy_base_volume,omitempty"`
	TakerBuyQuoteVolume string `json:"taker_buy_quote_volume,omitempty"`
}

// Candle is a typed OHLCV sample. OHLC ordering is not validated.
type Candle struct {
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"trade_count"`
}

// CandleSeries holds candles for one asset ordered by close time ascending.
type CandleSeries struct {
	Asset       AssetID     `json:"asset"`
	Granularity Granularity `json:"granularity"`
	Candles     []Candle    `json:"candles"`
}

func (s CandleSeries) Len() int {
	return len(s.Candles)
}

// Columns splits the series into high, low and close slices.
func (s CandleSeries) Columns() (highs, lows, closes []float64) {
	highs = make([]float64, len(s.Candles))
	lows = make([]float64, len(s.Candles))
	closes = make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// FEATURES /////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// FeatureRecord is one modeling row. Y is the log return against the prior close.
type FeatureRecord struct {
	Timestamp  time.Time `json:"ds"`
	Y          float64   `json:"y"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"trades"`
}

// FeatureSeries is the projected, target-augmented series for one asset.
type FeatureSeries struct {
	Asset       AssetID         `json:"asset"`
	Granularity Granularity     `json:"granularity"`
	Records     []FeatureRecord `json:"records"`
}

func (s FeatureSeries) Len() int {
	return len(s.Records)
}
