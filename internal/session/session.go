package session

import (
	"time"

	"attendro/internal/timetable"
)

// Session records that attendance was captured for one slot-occurrence.
// Identity key: (class, subject, batch-or-null, date, start time). Rows are
// created exactly once and never mutated.
type Session struct {
	ID             string
	ClassID        string
	SubjectID      string
	BatchID        *string
	FacultyID      string
	Date           time.Time
	Start          timetable.ClockTime
	IsSubstitution bool
	CreatedAt      time.Time
}

// RecordStatus marks one student's attendance.
type RecordStatus string

const (
	Present RecordStatus = "PRESENT"
	Absent  RecordStatus = "ABSENT"
)

// Record is one student's row in a session.
type Record struct {
	ID        string
	SessionID string
	StudentID string
	Status    RecordStatus
	Remark    string
	CreatedAt time.Time
}

// Key names one slot-occurrence for dedup checks.
type Key struct {
	ClassID   string
	SubjectID string
	BatchID   *string
	Date      time.Time
	Start     timetable.ClockTime
}
