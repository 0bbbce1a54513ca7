package volatility

import (
	"math"

	"cryptorank/internal/models"
)

// DefaultATRPeriod is the Wilder window used when none is configured.
const DefaultATRPeriod = 14

// ATR computes Wilder's Average True Range.
//
//	TR[i]      = max(H[i]-L[i], |H[i]-C[i-1]|, |L[i]-C[i-1]|)  for i >= 1
//	ATR[p]     = mean(TR[1..p])
//	ATR[i]     = (ATR[i-1]*(p-1) + TR[i]) / p                    for i > p
//
// Rows 0..p-1 have no ATR and are NaN, as is every row when the series is
// shorter than p+1. Mismatched inputs are truncated to the shortest slice.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if len(highs) < n {
		n = len(highs)
	}
	if len(lows) < n {
		n = len(lows)
	}

	atr := make([]float64, n)
	for i := range atr {
		atr[i] = math.NaN()
	}
	if period < 1 || n < period+1 {
		return atr
	}

	tr := func(i int) float64 {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		return math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr(i)
	}
	atr[period] = sum / float64(period)

	p := float64(period)
	for i := period + 1; i < n; i++ {
		atr[i] = (atr[i-1]*(p-1) + tr(i)) / p
	}
	return atr
}

// ScoreAsset scores series with the default ATR period.
func ScoreAsset(series models.CandleSeries) (float64, bool) {
	return ScoreAssetPeriod(series, DefaultATRPeriod)
}

// ScoreAssetPeriod returns the mean relative ATR (ATR[i]/close[i]) over rows
// where it is defined and finite. ok is false when the series has fewer than
// period+1 candles or no row qualifies; such assets are unranked, never zero.
func ScoreAssetPeriod(series models.CandleSeries, period int) (score float64, ok bool) {
	if period < 1 || series.Len() < period+1 {
		return 0, false
	}

	highs, lows, closes := series.Columns()
	atr := ATR(highs, lows, closes, period)

	sum, rows := 0.0, 0
	for i, v := range atr {
		if math.IsNaN(v) || math.IsInf(v, 0) || closes[i] <= 0 {
			continue
		}
		ratio := v / closes[i]
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			continue
		}
		sum += ratio
		rows++
	}
	if rows == 0 {
		return 0, false
	}
	return sum / float64(rows), true
}
