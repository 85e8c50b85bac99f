package availability

import (
	"slices"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
)

var testDay = Day{Year: 2026, Month: time.March, Day: 2, Loc: time.UTC}

func TestOverlapsHalfOpen(t *testing.T) {
	if Overlaps(540, 600, 600, 660) {
		t.Fatalf("touching ranges must not overlap")
	}
	if !Overlaps(540, 601, 600, 660) {
		t.Fatalf("expected overlap by one minute")
	}
	if !Overlaps(600, 660, 570, 630) || !Overlaps(570, 630, 600, 660) {
		t.Fatalf("expected symmetric overlap")
	}
	base := testDay.At(600)
	if OverlapsTime(base, base.Add(time.Hour), base.Add(time.Hour), base.Add(2*time.Hour)) {
		t.Fatalf("touching instants must not overlap")
	}
}

func TestAvailableSlots_ExistingAppointment(t *testing.T) {
	booked := []MinuteRange{{Start: 600, End: 660}}
	slots := AvailableSlots(calendar.Default, testDay, 60, booked, nil)

	for _, excluded := range []int{570, 600, 630} {
		if slices.Contains(slots, excluded) {
			t.Fatalf("expected %d excluded, got %v", excluded, slots)
		}
	}
	for _, included := range []int{540, 660} {
		if !slices.Contains(slots, included) {
			t.Fatalf("expected %d included, got %v", included, slots)
		}
	}
	if !slices.IsSorted(slots) {
		t.Fatalf("expected ascending slots, got %v", slots)
	}
}

func TestAvailableSlots_ClosingBoundary(t *testing.T) {
	slots := AvailableSlots(calendar.Default, testDay, 60, nil, nil)
	if slots[len(slots)-1] != 1020 {
		t.Fatalf("expected last slot 17:00 ending exactly at close, got %d", slots[len(slots)-1])
	}

	odd := calendar.Policy{StartMinute: 540, EndMinute: 1080, StepMinutes: 1}
	slots = AvailableSlots(odd, testDay, 60, nil, nil)
	if slices.Contains(slots, 1021) {
		t.Fatalf("slot ending one minute after close must be excluded")
	}
	if !slices.Contains(slots, 1020) {
		t.Fatalf("slot ending at close must be included")
	}
}

func TestAvailableSlots_Blocked(t *testing.T) {
	blocked := []Interval{{Start: testDay.At(720), End: testDay.At(780)}}
	slots := AvailableSlots(calendar.Default, testDay, 30, nil, blocked)
	if slices.Contains(slots, 720) || slices.Contains(slots, 750) {
		t.Fatalf("expected lunch block excluded, got %v", slots)
	}
	if !slices.Contains(slots, 690) || !slices.Contains(slots, 780) {
		t.Fatalf("expected slots adjacent to block, got %v", slots)
	}
}

func TestAvailableSlots_BlockSpanningMidnight(t *testing.T) {
	prev := Day{Year: 2026, Month: time.March, Day: 1, Loc: time.UTC}
	blocked := []Interval{{Start: prev.At(22 * 60), End: testDay.At(600)}}
	slots := AvailableSlots(calendar.Default, testDay, 30, nil, blocked)
	if len(slots) == 0 || slots[0] != 600 {
		t.Fatalf("expected first slot 10:00, got %v", slots)
	}
}

func TestAvailableSlots_NoneFit(t *testing.T) {
	slots := AvailableSlots(calendar.Default, testDay, 600, nil, nil)
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", slots)
	}
}

func TestDayAtTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*3600)
	d := Day{Year: 2026, Month: time.March, Day: 2, Loc: loc}
	if got := d.At(540).UTC(); got.Hour() != 3 {
		t.Fatalf("expected 03:00 UTC, got %s", got)
	}
	b := d.Bounds()
	if b.End.Sub(b.Start) != 24*time.Hour {
		t.Fatalf("expected 24h bounds, got %s", b.End.Sub(b.Start))
	}
}
