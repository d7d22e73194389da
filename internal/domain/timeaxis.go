package domain

import (
	"math"
	"time"
)

// TimeFormat selects how query results express time.
type TimeFormat string

const (
	// TimeRelative expresses times as hours since the reference time.
	TimeRelative TimeFormat = "relative"
	// TimeAbsolute expresses times as calendar timestamps.
	TimeAbsolute TimeFormat = "absolute"
)

// ParseTimeFormat maps a user-supplied string onto a TimeFormat,
// defaulting to relative.
func ParseTimeFormat(s string) TimeFormat {
	if s == string(TimeAbsolute) {
		return TimeAbsolute
	}
	return TimeRelative
}

// AbsoluteTime converts a relative offset in hours to a timestamp.
func AbsoluteTime(ref time.Time, hours float64) time.Time {
	return ref.Add(time.Duration(hours * float64(time.Hour)))
}

// AbsoluteTimes converts a relative axis to timestamps.
func AbsoluteTimes(ref time.Time, hours []float64) []time.Time {
	out := make([]time.Time, len(hours))
	for i, h := range hours {
		out[i] = AbsoluteTime(ref, h)
	}
	return out
}

// ClosestTimeIndex finds the index of t in a sorted time axis. An exact hit
// within tolerance wins; otherwise the previous (earlier) step is used.
// Returns -1 when the axis is empty or t precedes it entirely.
func ClosestTimeIndex(times []float64, t float64) int {
	idx := -1
	for i, v := range times {
		if math.Abs(v-t) <= timeTol {
			return i
		}
		if v < t {
			idx = i
			continue
		}
		break
	}
	return idx
}
