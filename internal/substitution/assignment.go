package substitution

import (
	"errors"
	"time"

	"attendro/internal/timetable"
)

// Status is the assignment lifecycle state.
type Status string

const (
	Pending   Status = "PENDING"
	Confirmed Status = "CONFIRMED"
	Completed Status = "COMPLETED"
	Cancelled Status = "CANCELLED"
)

// Type records how an assignment came to exist.
type Type string

const (
	Auto     Type = "AUTO"
	Manual   Type = "MANUAL"
	Transfer Type = "TRANSFER"
)

// Assignment covers one slot-occurrence of a faculty member on leave.
// The identity key for "already covered" is (SrcFacultyID, Date, Start)
// among non-cancelled rows, enforced by a partial unique index.
type Assignment struct {
	ID           string
	SrcFacultyID string
	SubFacultyID string
	ClassID      string
	SubjectID    string
	Date         time.Time
	Start        timetable.ClockTime
	Status       Status
	Type         Type
	Notes        string
	AssignedBy   string
	CreatedAt    time.Time
}

// ErrInvalidTransition means the requested status change is not an allowed
// lifecycle edge.
var ErrInvalidTransition = errors.New("assignment status transition not allowed")

// transitions are the allowed lifecycle edges. COMPLETED and CANCELLED are
// terminal.
var transitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled},
	Confirmed: {Completed, Cancelled},
}

// CanTransition reports whether from→to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
