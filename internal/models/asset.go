package models

import (
	"sort"
	"strings"
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// ASSETS ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// AssetID is a short ticker such as "BTC". Comparison is exact; no case folding.
type AssetID string

// AssetSet is an immutable set of assets. Every operation returns a new set.
type AssetSet map[AssetID]struct{}

// NewAssetSet builds a set from the given ids. Empty ids are ignored.
func NewAssetSet(ids ...AssetID) AssetSet {
	s := make(AssetSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// AssetSetFromStrings is a convenience for configuration and tests.
func AssetSetFromStrings(ids []string) AssetSet {
	s := make(AssetSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[AssetID(id)] = struct{}{}
	}
	return s
}

func (s AssetSet) Has(id AssetID) bool {
	_, ok := s[id]
	return ok
}

func (s AssetSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexicographic order.
func (s AssetSet) Sorted() []AssetID {
	out := make([]AssetID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Intersect returns s ∩ other.
func (s AssetSet) Intersect(other AssetSet) AssetSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(AssetSet, len(small))
	for id := range small {
		if large.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Difference returns s − other.
func (s AssetSet) Difference(other AssetSet) AssetSet {
	out := make(AssetSet, len(s))
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns s ∪ other.
func (s AssetSet) Union(other AssetSet) AssetSet {
	out := make(AssetSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

func (s AssetSet) Equal(other AssetSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// String renders the set sorted, e.g. {BTC, ETH}.
func (s AssetSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
