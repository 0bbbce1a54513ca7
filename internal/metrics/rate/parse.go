package rate

import (
	"strconv"
	"strings"
	"time"
)

// extractInts returns all integer substrings contained in s. Any non-digit
// characters are treated as separators. Missing or unparsable values result in
// an empty slice.
func extractInts(s string) []int64 {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	})
	nums := make([]int64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if n, err := strconv.ParseInt(p, 10, 64); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

// bannedUntil picks the first millisecond epoch in msg, as Binance reports
// "IP banned until 1663234567890". Zero when none is present.
func bannedUntil(msg string) time.Time {
	for _, n := range extractInts(msg) {
		// 13 digit epoch millis
		if n >= 1_000_000_000_000 && n < 10_000_000_000_000 {
			return time.UnixMilli(n)
		}
	}
	return time.Time{}
}
