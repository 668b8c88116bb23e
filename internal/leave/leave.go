package leave

import (
	"time"

	"attendro/internal/timetable"
)

// Kind partitions the leave day.
type Kind string

const (
	FullDay       Kind = "FULL_DAY"
	HalfMorning   Kind = "HALF_MORNING"
	HalfAfternoon Kind = "HALF_AFTERNOON"
)

// Valid reports whether k is a known day partition.
func (k Kind) Valid() bool {
	switch k {
	case FullDay, HalfMorning, HalfAfternoon:
		return true
	}
	return false
}

// Covers reports whether a leave of this kind covers a lecture starting at
// start, given the configured morning/afternoon boundary.
func (k Kind) Covers(start, midday timetable.ClockTime) bool {
	switch k {
	case FullDay:
		return true
	case HalfMorning:
		return start.Before(midday)
	case HalfAfternoon:
		return !start.Before(midday)
	}
	return false
}

// Status is the leave lifecycle state. Transitions are one-way from Pending.
type Status string

const (
	Pending  Status = "PENDING"
	Approved Status = "APPROVED"
	Rejected Status = "REJECTED"
)

// Request is a faculty leave request for a single date.
type Request struct {
	ID        string
	FacultyID string
	Date      time.Time
	Kind      Kind
	Reason    string
	Status    Status
	CreatedAt time.Time
}
