package model

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the business-local calendar day format used everywhere
	// in the core. Callers supply already-localized dates; the core never
	// does timezone conversion.
	DateLayout = "2006-01-02"

	// ClockLayout is the business-local wall-clock format.
	ClockLayout = "15:04"

	MinutesPerDay = 24 * 60
)

// Window is a half-open time range [Start, End) in minutes since midnight.
type Window struct {
	Start int `json:"start" bson:"start"`
	End   int `json:"end" bson:"end"`
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && w.End > other.Start
}

// Contains reports whether other lies entirely inside w.
func (w Window) Contains(other Window) bool {
	return other.Start >= w.Start && other.End <= w.End
}

func (w Window) Valid() bool {
	return w.Start >= 0 && w.End <= MinutesPerDay && w.Start < w.End
}

// MinutesFromClock parses an "HH:MM" string into minutes since midnight.
// The hour must be zero-padded; time.Parse alone would accept "9:30".
func MinutesFromClock(clock string) (int, error) {
	if len(clock) != len(ClockLayout) {
		return 0, fmt.Errorf("invalid clock time %q: must be HH:MM", clock)
	}
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ClockFromMinutes renders minutes since midnight as "HH:MM".
func ClockFromMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a "YYYY-MM-DD" calendar day in the given location.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}
