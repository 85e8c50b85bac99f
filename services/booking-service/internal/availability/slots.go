package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
)

// Day anchors minute offsets to absolute instants on one calendar date in a location.
type Day struct {
	Year  int
	Month time.Month
	Day   int
	Loc   *time.Location
}

func DayOf(date time.Time, loc *time.Location) Day {
	return Day{Year: date.Year(), Month: date.Month(), Day: date.Day(), Loc: loc}
}

// At returns the instant minute minutes after local midnight. time.Date normalises
// overflow, so 1440 is the next midnight.
func (d Day) At(minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, minute, 0, 0, d.Loc)
}

// Bounds is [midnight, next midnight) for the day.
func (d Day) Bounds() Interval {
	return Interval{Start: d.At(0), End: time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, d.Loc)}
}

// AvailableSlots returns the policy's candidate starts, ascending, for which a booking of
// duration minutes ends by closing time and overlaps neither an existing appointment
// nor a blocked range.
func AvailableSlots(policy calendar.Policy, day Day, duration int, booked []MinuteRange, blocked []Interval) []int {
	if duration <= 0 {
		return nil
	}

	slots := []int{}
	for s := range policy.Candidates() {
		e := s + duration
		if !policy.Fits(s, duration) {
			// Candidates ascend, so no later start fits either.
			break
		}
		if overlapsAnyMinutes(s, e, booked) {
			continue
		}
		if overlapsAnyInterval(day.At(s), day.At(e), blocked) {
			continue
		}
		slots = append(slots, s)
	}
	return slots
}

func overlapsAnyMinutes(start, end int, busy []MinuteRange) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

func overlapsAnyInterval(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if OverlapsTime(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
