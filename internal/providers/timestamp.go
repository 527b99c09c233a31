package providers

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeEpoch converts a numeric timestamp of unknown unit to a UTC
// time, per spec.md §4.2's heuristic: values > 1e15 are nanoseconds,
// > 1e12 are milliseconds, else seconds.
func NormalizeEpoch(v float64) time.Time {
	switch {
	case v > 1e15:
		return time.Unix(0, int64(v)).UTC()
	case v > 1e12:
		return time.UnixMilli(int64(v)).UTC()
	default:
		return time.Unix(int64(v), 0).UTC()
	}
}

// NormalizeTimestampString parses ISO 8601 (including trailing Z) and
// date-only forms, per spec.md §4.2.
func NormalizeTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// ParseFloat safely converts a JSON-decoded interface{} (string or
// float64) to float64, tolerating provider payloads that mix numeric
// and string-encoded numbers. Grounded on
// internal/providers/adapters/binance.go's parseFloat helper.
func ParseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		return 0
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	}
	return 0
}
