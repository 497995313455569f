package enum

import "time"

type TimeRange string

const (
	TimeRange24h TimeRange = "24h"
	TimeRange7d  TimeRange = "7d"
	TimeRange30d TimeRange = "30d"
	TimeRange90d TimeRange = "90d"
)

// GetTimeRange falls back to 30d for unknown values.
func GetTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case TimeRange24h, TimeRange7d, TimeRange30d, TimeRange90d:
		return TimeRange(s)
	default:
		return TimeRange30d
	}
}

func (t TimeRange) Duration() time.Duration {
	switch t {
	case TimeRange24h:
		return 24 * time.Hour
	case TimeRange7d:
		return 7 * 24 * time.Hour
	case TimeRange90d:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

func (t TimeRange) Since(now time.Time) time.Time {
	return now.Add(-t.Duration())
}

func (t TimeRange) String() string {
	return string(t)
}
