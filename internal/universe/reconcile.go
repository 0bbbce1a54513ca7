// Package universe reconciles two exchange inventories into the set of
// assets that can be traded on both.
package universe

import (
	"errors"
	"fmt"
	"strings"

	"cryptorank/internal/audit"
	"cryptorank/internal/models"
	"cryptorank/logger"
)

// ErrEmptyUniverse halts the run: there is nothing to rank.
var ErrEmptyUniverse = errors.New("empty universe")

// Inventory is one provider's asset list.
type Inventory struct {
	Provider string
	Assets   models.AssetSet
}

// Reconcile returns (a ∩ b) − denylist. Each intermediate set is appended to
// sink followed by its size and label. The result does not depend on the
// order of a and b apart from the audit labels.
func Reconcile(a, b Inventory, denylist models.AssetSet, sink audit.Sink) (models.AssetSet, error) {
	log := logger.GetLogger().WithComponent("universe")

	writeSet(sink, a.Assets, label(a.Provider, "A"))
	writeSet(sink, b.Assets, label(b.Provider, "B"))

	shared := a.Assets.Intersect(b.Assets)
	valid := shared.Difference(denylist)

	writeSet(sink, shared, "Shared")
	writeSet(sink, denylist, "Invalid")
	writeSet(sink, valid, "Valid")

	log.WithFields(logger.Fields{
		"inventory_a": a.Assets.Len(),
		"inventory_b": b.Assets.Len(),
		"shared":      shared.Len(),
		"denylisted":  shared.Len() - valid.Len(),
		"valid":       valid.Len(),
	}).Info("reconciled inventories")

	switch {
	case a.Assets.Len() == 0:
		return nil, fmt.Errorf("%w: %s inventory is empty", ErrEmptyUniverse, label(a.Provider, "A"))
	case b.Assets.Len() == 0:
		return nil, fmt.Errorf("%w: %s inventory is empty", ErrEmptyUniverse, label(b.Provider, "B"))
	case valid.Len() == 0:
		return nil, fmt.Errorf("%w: no shared assets left after denylist", ErrEmptyUniverse)
	}
	return valid, nil
}

func writeSet(sink audit.Sink, set models.AssetSet, name string) {
	audit.Printf(sink, "%s\n%d %s\n\n", set, set.Len(), name)
}

// label capitalises the provider name, falling back when it is empty.
func label(provider, fallback string) string {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return fallback
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}
