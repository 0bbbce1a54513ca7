package universe

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"cryptorank/internal/audit"
	"cryptorank/internal/models"
)

func inv(provider string, ids ...models.AssetID) Inventory {
	return Inventory{Provider: provider, Assets: models.NewAssetSet(ids...)}
}

func TestReconcileScenario(t *testing.T) {
	a := inv("binance", "BTC", "ETH", "XRP", "USDC")
	b := inv("kucoin", "BTC", "ETH", "USDC", "ADA")
	deny := models.NewAssetSet("USDC")
	var buf audit.Buffer

	valid, err := Reconcile(a, b, deny, &buf)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !valid.Equal(models.NewAssetSet("BTC", "ETH")) {
		t.Fatalf("unexpected universe: %s", valid)
	}

	want := "{BTC, ETH, USDC, XRP}\n4 Binance\n\n" +
		"{ADA, BTC, ETH, USDC}\n4 Kucoin\n\n" +
		"{BTC, ETH, USDC}\n3 Shared\n\n" +
		"{USDC}\n1 Invalid\n\n" +
		"{BTC, ETH}\n2 Valid\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected audit trail:\n%s", buf.String())
	}
}

func TestReconcileMatchesSetAlgebra(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := make([]models.AssetID, 40)
	for i := range pool {
		pool[i] = models.AssetID(fmt.Sprintf("A%02d", i))
	}
	pick := func() models.AssetSet {
		s := models.NewAssetSet()
		for _, id := range pool {
			if rng.Intn(2) == 0 {
				s[id] = struct{}{}
			}
		}
		return s
	}

	for i := 0; i < 50; i++ {
		a, b, d := pick(), pick(), pick()
		want := a.Intersect(b).Difference(d)

		got, err := Reconcile(Inventory{"a", a}, Inventory{"b", b}, d, audit.Discard)
		if want.Len() == 0 {
			if !errors.Is(err, ErrEmptyUniverse) {
				t.Fatalf("expected ErrEmptyUniverse, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if !got.Equal(want) {
			t.Fatalf("got %s want %s", got, want)
		}

		swapped, err := Reconcile(Inventory{"b", b}, Inventory{"a", a}, d, audit.Discard)
		if err != nil || !swapped.Equal(got) {
			t.Fatalf("reconcile is not commutative: %s vs %s (%v)", got, swapped, err)
		}
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	_, err := Reconcile(inv("binance"), inv("kucoin", "BTC"), models.NewAssetSet(), audit.Discard)
	if !errors.Is(err, ErrEmptyUniverse) || !strings.Contains(err.Error(), "Binance inventory is empty") {
		t.Fatalf("expected empty A error, got %v", err)
	}

	_, err = Reconcile(inv("binance", "BTC"), inv(""), models.NewAssetSet(), audit.Discard)
	if !errors.Is(err, ErrEmptyUniverse) || !strings.Contains(err.Error(), "B inventory is empty") {
		t.Fatalf("expected empty B error, got %v", err)
	}

	_, err = Reconcile(inv("binance", "USDC"), inv("kucoin", "USDC"), models.NewAssetSet("USDC"), audit.Discard)
	if !errors.Is(err, ErrEmptyUniverse) {
		t.Fatalf("expected denylist to empty the universe, got %v", err)
	}
}

func TestReconcileNoCaseFolding(t *testing.T) {
	_, err := Reconcile(inv("a", "btc"), inv("b", "BTC"), models.NewAssetSet(), audit.Discard)
	if !errors.Is(err, ErrEmptyUniverse) {
		t.Fatalf("ids must match exactly, got %v", err)
	}
}
