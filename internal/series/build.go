package series

import (
	"math"

	"cryptorank/internal/models"
)

// Build normalizes raw and projects it onto the feature schema. The first
// row has no prior close, so N candles give N-1 records.
func Build(asset models.AssetID, g models.Granularity, raw []models.RawCandle) (models.FeatureSeries, error) {
	s, err := Normalize(asset, g, raw)
	if err != nil {
		return models.FeatureSeries{}, err
	}
	return FromCandles(s), nil
}

// FromCandles computes y[i] = ln(1 + (close[i]-close[i-1])/close[i-1]) and
// keeps only the modeling columns, timestamped by close time.
func FromCandles(s models.CandleSeries) models.FeatureSeries {
	out := models.FeatureSeries{Asset: s.Asset, Granularity: s.Granularity}
	if len(s.Candles) < 2 {
		out.Records = []models.FeatureRecord{}
		return out
	}

	out.Records = make([]models.FeatureRecord, 0, len(s.Candles)-1)
	for i := 1; i < len(s.Candles); i++ {
		prev, c := s.Candles[i-1].Close, s.Candles[i]
		out.Records = append(out.Records, models.FeatureRecord{
			Timestamp:  c.CloseTime,
			Y:          math.Log1p((c.Close - prev) / prev),
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
			TradeCount: c.TradeCount,
		})
	}
	return out
}
