// Package metrics records pipeline metric events. Every event is logged,
// dispatched to registered handlers and, when InitCloudWatch succeeded,
// published as a CloudWatch datum.
package metrics

// Metric names emitted by the pipeline stages.
const (
	MetricUniverseSize   = "universe_size"
	MetricAssetsScored   = "assets_scored"
	MetricAssetsDropped  = "assets_dropped"
	MetricSelectionSize  = "selection_size"
	MetricSeriesBuilt    = "series_built"
	MetricPricesCaptured = "prices_captured"
	MetricRunDuration    = "run_duration_ms"
	MetricRunHalted      = "run_halted"
)

// PipelineMetrics lists the metrics shown on the dashboard, in display order.
var PipelineMetrics = []string{
	MetricUniverseSize,
	MetricAssetsScored,
	MetricAssetsDropped,
	MetricSelectionSize,
	MetricSeriesBuilt,
	MetricPricesCaptured,
	MetricRunDuration,
	MetricRunHalted,
}
