// Package rate classifies exchange error messages that signal throttling and
// records them as metrics.
package rate

import (
	"strings"
	"time"

	"cryptorank/internal/metrics"
	"cryptorank/logger"
)

// Limit is the outcome of classifying an exchange message.
type Limit struct {
	RateLimited bool
	IPBanned    bool
	// BannedUntil is set when the message carries a ban expiry.
	BannedUntil time.Time
}

// Any reports whether the message signalled any kind of throttling.
func (l Limit) Any() bool {
	return l.RateLimited || l.IPBanned
}

func limitFields(exchange, asset, operation string) logger.Fields {
	return logger.Fields{
		"exchange":  strings.ToLower(exchange),
		"asset":     asset,
		"operation": strings.ToLower(operation),
	}
}

// ReportRateLimitExceeded emits rate_limit_exceeded for the exchange and operation.
func ReportRateLimitExceeded(log *logger.Log, exchange, asset, operation string) {
	if log == nil {
		log = logger.GetLogger()
	}
	component := strings.ToLower(exchange) + "_provider"
	fields := limitFields(exchange, asset, operation)
	metrics.EmitMetric(log, component, "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan emits ip_ban for the exchange and operation.
func ReportIPBan(log *logger.Log, exchange, asset, operation string, until time.Time) {
	if log == nil {
		log = logger.GetLogger()
	}
	component := strings.ToLower(exchange) + "_provider"
	fields := limitFields(exchange, asset, operation)
	metrics.EmitMetric(log, component, "ip_ban", int64(1), "counter", fields)
	entry := log.WithComponent(component).WithFields(fields)
	if !until.IsZero() {
		entry = entry.WithFields(logger.Fields{"banned_until": until.UTC().Format(time.RFC3339)})
	}
	entry.Error("ip banned")
}

// detectLimit inspects the message returned from an exchange and determines whether
// it signals a rate limit exceed or an IP ban. Each exchange words these differently.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "-1003")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "kucoin":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "429000")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "limit") && strings.Contains(lowerMsg, "triggered")
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits") || strings.Contains(lowerMsg, "10006"))
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// Classify inspects msg without recording anything.
func Classify(exchange, msg string) Limit {
	rateLimit, ipBan := detectLimit(exchange, msg)
	l := Limit{RateLimited: rateLimit, IPBanned: ipBan}
	if ipBan {
		l.BannedUntil = bannedUntil(msg)
	}
	return l
}

// ReportLimitFromMessage classifies msg and records the matching metrics.
// Messages that match no known pattern are ignored.
func ReportLimitFromMessage(log *logger.Log, exchange, asset, operation, msg string) Limit {
	l := Classify(exchange, msg)
	if l.RateLimited {
		ReportRateLimitExceeded(log, exchange, asset, operation)
	}
	if l.IPBanned {
		ReportIPBan(log, exchange, asset, operation, l.BannedUntil)
	}
	return l
}
