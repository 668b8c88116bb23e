package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayOfWeek is a teaching weekday. Sunday is not a teaching day.
type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
)

// DayOf maps a calendar date to its weekday name.
func DayOf(date time.Time) DayOfWeek {
	return DayOfWeek(date.Weekday().String())
}

// Valid reports whether d names a teaching weekday.
func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday:
		return true
	}
	return false
}

// ClockTime is a time of day with minute precision, stored as minutes past
// midnight so values compare with plain integer ordering.
type ClockTime int

// ParseClock accepts "HH:MM" or "HH:MM:SS"; seconds are discarded.
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime(h*60 + m), nil
}

// MustClock is ParseClock for trusted literals (config defaults, tests).
func MustClock(s string) ClockTime {
	ct, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return ct
}

// String renders HH:MM, the wire and storage format.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Before reports whether c is strictly earlier than other.
func (c ClockTime) Before(other ClockTime) bool { return c < other }

// At anchors the clock time onto a calendar date in the given location.
func (c ClockTime) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(c)/60, int(c)%60, 0, 0, date.Location())
}

// Slot is one recurring weekly lecture in the timetable, valid over an
// inclusive date range.
type Slot struct {
	ID        string
	FacultyID string
	ClassID   string
	SubjectID string
	BatchID   *string
	Day       DayOfWeek
	Start     ClockTime
	Room      string
	ValidFrom time.Time
	ValidTo   time.Time
	CreatedAt time.Time
}

// ScheduledOn reports whether the slot produces an occurrence on date.
func (s Slot) ScheduledOn(date time.Time) bool {
	if DayOf(date) != s.Day {
		return false
	}
	d := date.Format("2006-01-02")
	return s.ValidFrom.Format("2006-01-02") <= d && d <= s.ValidTo.Format("2006-01-02")
}
