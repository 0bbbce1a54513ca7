package metrics

import "cryptorank/logger"

// DropReason says why an asset left a stage's batch.
type DropReason string

const (
	// DropReasonFetch covers provider errors and timeouts.
	DropReasonFetch DropReason = "fetch_failed"
	// DropReasonNoScore marks series too short or without a defined ATR.
	DropReasonNoScore DropReason = "no_score"
	// DropReasonMalformed marks candles that could not be parsed.
	DropReasonMalformed DropReason = "malformed_candle"
	// DropReasonPrice marks a missing or unusable spot price.
	DropReasonPrice DropReason = "price_unavailable"
)

// EmitDropMetric records one asset dropped from a stage. Empty metadata is
// left out of the fields.
func EmitDropMetric(log *logger.Log, stage string, reason DropReason, asset, granularity string) {
	fields := logger.Fields{"reason": string(reason)}
	if stage != "" {
		fields["stage"] = stage
	}
	if asset != "" {
		fields["asset"] = asset
	}
	if granularity != "" {
		fields["granularity"] = granularity
	}

	EmitMetric(log, "pipeline", MetricAssetsDropped, 1, "counter", fields)
}
