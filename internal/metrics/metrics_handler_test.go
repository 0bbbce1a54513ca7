package metrics

import (
	"testing"

	"cryptorank/logger"
)

func TestRecordMetricDefaults(t *testing.T) {
	fields := logger.Fields{"stage": "universe", "run_id": "run-1"}

	m, ok := recordMetric(nil, "pipeline", MetricUniverseSize, 2, "", fields)
	if !ok {
		t.Fatalf("expected metric to be recorded")
	}
	if m.Type != "counter" {
		t.Fatalf("expected default type counter, got %s", m.Type)
	}
	if m.RunID != "run-1" {
		t.Fatalf("expected run id from fields, got %q", m.RunID)
	}
	if m.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}

	m.Fields["stage"] = "ranking"
	if fields["stage"] != "universe" {
		t.Fatalf("caller fields mutated: %v", fields)
	}

	if _, ok := recordMetric(nil, "pipeline", "", 1, "gauge", nil); ok {
		t.Fatalf("metric without a name should not be recorded")
	}
}

func TestTallyRoutesByRun(t *testing.T) {
	a := OpenTally("run-a")
	b := OpenTally("run-b")
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	EmitMetric(nil, "pipeline", MetricUniverseSize, 40, "gauge", logger.Fields{"run_id": "run-a"})
	EmitMetric(nil, "pipeline", MetricUniverseSize, 7, "gauge", logger.Fields{"run_id": "run-b"})
	EmitDropMetric(nil, "ranking", DropReasonNoScore, "BTC", "1m")
	EmitMetric(nil, "pipeline", MetricRunHalted, 1, "counter", logger.Fields{"run_id": "run-unknown"})

	if got := a.Total(MetricUniverseSize); got != 40 {
		t.Fatalf("run-a universe_size: got %v", got)
	}
	if got := b.Total(MetricUniverseSize); got != 7 {
		t.Fatalf("run-b universe_size: got %v", got)
	}
	if a.Count(MetricAssetsDropped) != 1 || b.Count(MetricAssetsDropped) != 1 {
		t.Fatalf("untagged drop should reach both runs: %d/%d", a.Count(MetricAssetsDropped), b.Count(MetricAssetsDropped))
	}
	if a.Count(MetricRunHalted) != 0 || b.Count(MetricRunHalted) != 0 {
		t.Fatalf("metric for an unknown run leaked into an open tally")
	}
}

func TestTallyClose(t *testing.T) {
	tally := OpenTally("run-close")
	if again := OpenTally("run-close"); again != tally {
		t.Fatalf("reopening an open run should return the same tally")
	}

	EmitMetric(nil, "series_builder", MetricSeriesBuilt, 3, "gauge", nil)
	EmitMetric(nil, "pipeline", MetricSelectionSize, 10, "gauge", logger.Fields{"run_id": "run-close"})
	EmitMetric(nil, "pipeline", "label", "not numeric", "gauge", nil)

	summary := tally.Close()
	EmitMetric(nil, "pipeline", MetricSelectionSize, 5, "gauge", logger.Fields{"run_id": "run-close"})

	if summary.RunID != "run-close" {
		t.Fatalf("unexpected run id %q", summary.RunID)
	}
	names := summary.Names()
	if len(names) != 2 || names[0] != MetricSelectionSize || names[1] != MetricSeriesBuilt {
		t.Fatalf("unexpected names: %v", names)
	}
	if got := summary.Fields()[MetricSelectionSize]; got != 10.0 {
		t.Fatalf("tally kept receiving after Close: %v", got)
	}
	if second := tally.Close(); second.Totals[MetricSelectionSize] != 10 {
		t.Fatalf("second Close changed the summary: %v", second.Totals)
	}

	fresh := OpenTally("run-close")
	defer fresh.Close()
	if fresh == tally || fresh.Total(MetricSelectionSize) != 0 {
		t.Fatalf("reopened run should start empty")
	}
}
