package availability

import "time"

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect. Touching ranges do not.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// OverlapsTime is Overlaps on absolute instants, for ranges that may cross midnight.
func OverlapsTime(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinuteRange is a same-day half-open range in minutes from midnight.
type MinuteRange struct {
	Start int
	End   int
}

// Interval is a half-open range in absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}
