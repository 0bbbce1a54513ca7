// Package series turns raw exchange klines into typed candle series and
// projects them onto the modeling schema.
package series

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"cryptorank/internal/models"
)

// ErrMalformedCandle matches every *MalformedCandleError.
var ErrMalformedCandle = errors.New("malformed candle")

// MalformedCandleError reports the first wire field that failed to parse.
type MalformedCandleError struct {
	Asset models.AssetID
	Row   int
	Field string
	Value string
	Err   error
}

func (e *MalformedCandleError) Error() string {
	return fmt.Sprintf("malformed candle %s row %d field %s value %q: %v", e.Asset, e.Row, e.Field, e.Value, e.Err)
}

func (e *MalformedCandleError) Unwrap() error { return e.Err }

func (e *MalformedCandleError) Is(target error) bool { return target == ErrMalformedCandle }

// Normalize parses every numeric field of raw into a typed series. Row order
// is kept as delivered.
func Normalize(asset models.AssetID, g models.Granularity, raw []models.RawCandle) (models.CandleSeries, error) {
	out := models.CandleSeries{Asset: asset, Granularity: g, Candles: make([]models.Candle, 0, len(raw))}

	for i, rc := range raw {
		c := models.Candle{OpenTime: rc.OpenTime, CloseTime: rc.CloseTime, TradeCount: rc.TradeCount}
		fields := []struct {
			name  string
			value string
			dst   *float64
		}{
			{"open", rc.Open, &c.Open},
			{"high", rc.High, &c.High},
			{"low", rc.Low, &c.Low},
			{"close", rc.Close, &c.Close},
			{"volume", rc.Volume, &c.Volume},
		}
		for _, f := range fields {
			v, err := parseDecimal(f.value)
			if err != nil {
				return models.CandleSeries{}, &MalformedCandleError{Asset: asset, Row: i, Field: f.name, Value: f.value, Err: err}
			}
			*f.dst = v
		}
		if rc.TradeCount < 0 {
			return models.CandleSeries{}, &MalformedCandleError{
				Asset: asset, Row: i, Field: "trades", Value: fmt.Sprint(rc.TradeCount),
				Err: errors.New("negative trade count"),
			}
		}
		out.Candles = append(out.Candles, c)
	}
	return out, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
