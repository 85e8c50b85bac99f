package calendar

import (
	"errors"
	"fmt"
	"iter"
)

const minutesPerDay = 24 * 60

// Policy is a professional's fixed daily working window and slot granularity,
// in minutes from midnight.
type Policy struct {
	StartMinute int `yaml:"start_minute"`
	EndMinute   int `yaml:"end_minute"`
	StepMinutes int `yaml:"step_minutes"`
}

// Default is 09:00–18:00 in 30 minute steps.
var Default = Policy{StartMinute: 540, EndMinute: 1080, StepMinutes: 30}

var ErrInvalidPolicy = errors.New("invalid calendar policy")

func (p Policy) Validate() error {
	switch {
	case p.StepMinutes <= 0:
		return fmt.Errorf("%w: step_minutes must be positive", ErrInvalidPolicy)
	case p.StartMinute < 0 || p.EndMinute > minutesPerDay:
		return fmt.Errorf("%w: window must lie within 00:00-24:00", ErrInvalidPolicy)
	case p.EndMinute <= p.StartMinute:
		return fmt.Errorf("%w: end_minute must be after start_minute", ErrInvalidPolicy)
	}
	return nil
}

// Candidates yields every slot start in [StartMinute, EndMinute) aligned to StepMinutes.
// The sequence is lazy and can be ranged over any number of times.
func (p Policy) Candidates() iter.Seq[int] {
	return func(yield func(int) bool) {
		if p.StepMinutes <= 0 {
			return
		}
		for m := p.StartMinute; m < p.EndMinute; m += p.StepMinutes {
			if !yield(m) {
				return
			}
		}
	}
}

// Fits reports whether a booking of duration starting at start ends by closing time.
func (p Policy) Fits(start, duration int) bool {
	return start+duration <= p.EndMinute
}
