package models

import (
	"fmt"
	"time"
)

// Granularity is a candle sampling interval in minutes.
type Granularity int

const (
	Minute1  Granularity = 1
	Minute3  Granularity = 3
	Minute5  Granularity = 5
	Minute30 Granularity = 30
)

// SupportedGranularities lists every interval the providers can serve.
var SupportedGranularities = []Granularity{Minute1, Minute3, Minute5, Minute30}

func (g Granularity) Valid() bool {
	switch g {
	case Minute1, Minute3, Minute5, Minute30:
		return true
	default:
		return false
	}
}

func (g Granularity) Duration() time.Duration {
	return time.Duration(g) * time.Minute
}

func (g Granularity) String() string {
	return fmt.Sprintf("%dm", int(g))
}

// ParseGranularity converts a minute count into a Granularity.
func ParseGranularity(minutes int) (Granularity, error) {
	g := Granularity(minutes)
	if !g.Valid() {
		return 0, fmt.Errorf("unsupported granularity %d minutes", minutes)
	}
	return g, nil
}
