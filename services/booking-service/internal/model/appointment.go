package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active appointments occupy their time range on the professional's calendar.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

// Appointment is one booked service. EndMinute, DurationMinutes and Price are snapshotted
// from the service at creation and never recomputed.
type Appointment struct {
	ID              string
	UnitID          string
	ProfessionalID  string
	ServiceID       string
	Date            string // YYYY-MM-DD in the unit's timezone
	StartMinute     int
	EndMinute       int
	DurationMinutes int
	Price           decimal.Decimal
	ClientName      string
	ClientPhone     string
	Notes           string
	Status          AppointmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ParseClock converts "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, ok := twoDigits(s[:2])
	if !ok || h > 23 {
		return 0, fmt.Errorf("time %q has invalid hour", s)
	}
	m, ok := twoDigits(s[3:])
	if !ok || m > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", s)
	}
	return h*60 + m, nil
}

// twoDigits accepts exactly two ASCII digits; signs and spaces are rejected.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// FormatClock renders minutes from midnight as "HH:MM". 1440 renders as "24:00".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
