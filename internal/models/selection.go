package models

import (
	"strconv"
	"strings"
)

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// SELECTION /////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// ScoredAsset pairs an asset with its volatility score.
type ScoredAsset struct {
	Asset AssetID `json:"asset"`
	Score float64 `json:"score"`
}

// RankedSelection is the top-K for one granularity, ordered by score descending.
type RankedSelection struct {
	Granularity Granularity   `json:"granularity"`
	Entries     []ScoredAsset `json:"entries"`
}

// Assets returns the selected assets as a set.
func (r RankedSelection) Assets() AssetSet {
	s := make(AssetSet, len(r.Entries))
	for _, e := range r.Entries {
		s[e.Asset] = struct{}{}
	}
	return s
}

func (r RankedSelection) Len() int {
	return len(r.Entries)
}

// PriceSnapshot maps assets to a spot price. Failed assets are absent.
type PriceSnapshot map[AssetID]float64

// Assets returns the priced assets as a set.
func (p PriceSnapshot) Assets() AssetSet {
	s := make(AssetSet, len(p))
	for id := range p {
		s[id] = struct{}{}
	}
	return s
}

// String renders the snapshot sorted by asset, e.g. "{BTC: 65000, ETH: 3200.5}".
func (p PriceSnapshot) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range p.Assets().Sorted() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(id))
		sb.WriteString(": ")
		sb.WriteString(strconv.FormatFloat(p[id], 'f', -1, 64))
	}
	sb.WriteByte('}')
	return sb.String()
}
