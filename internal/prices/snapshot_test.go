package prices

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"cryptorank/internal/audit"
	"cryptorank/internal/models"
)

type fakeSource map[models.AssetID]float64

func (f fakeSource) FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error) {
	p, ok := f[asset]
	if !ok {
		return 0, errors.New("symbol not found")
	}
	return p, nil
}

func TestSnapshotOmitsFailures(t *testing.T) {
	var buf audit.Buffer
	s := NewSnapshotter(fakeSource{"BTC": 65000}, &buf, 4)

	snap, err := s.Snapshot(context.Background(), models.NewAssetSet("BTC", "ETH"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 1 || snap["BTC"] != 65000 {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	if !strings.Contains(buf.String(), "{BTC: 65000}\n1 Prices\n\n") {
		t.Fatalf("unexpected audit trail %q", buf.String())
	}
}

func TestSnapshotRejectsUnusablePrices(t *testing.T) {
	src := fakeSource{"BTC": 65000, "ZERO": 0, "NEG": -1, "NAN": math.NaN(), "INF": math.Inf(1)}
	s := NewSnapshotter(src, audit.Discard, 2)

	snap, err := s.Snapshot(context.Background(), models.NewAssetSet("BTC", "ZERO", "NEG", "NAN", "INF"))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Assets().Equal(models.NewAssetSet("BTC")) {
		t.Fatalf("unexpected snapshot %v", snap)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	s := NewSnapshotter(fakeSource{}, audit.Discard, 2)

	if _, err := s.Snapshot(context.Background(), models.NewAssetSet("ETH")); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot, got %v", err)
	}
	if _, err := s.Snapshot(context.Background(), models.NewAssetSet()); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot for empty input, got %v", err)
	}
}

func TestPriceFetchErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	var err error = &PriceFetchError{Asset: "BTC", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to inner error")
	}
	if err.Error() != "price BTC: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
