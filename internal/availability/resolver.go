// Package availability answers one question: is a faculty member free to
// stand in front of a class at a given date and start time.
package availability

import (
	"context"
	"time"

	"attendro/internal/leave"
	"attendro/internal/timetable"
)

// BusyReason says which rule disqualified a faculty member.
type BusyReason string

const (
	BusyNone         BusyReason = ""
	BusyTeaching     BusyReason = "teaching another class"
	BusyOnLeave      BusyReason = "on approved leave"
	BusySubstituting BusyReason = "already assigned as substitute"
)

// Check is the resolver verdict for one faculty member.
type Check struct {
	Free   bool
	Reason BusyReason
}

// SlotSource lists faculty with a timetable slot at a moment.
type SlotSource interface {
	BusyFaculty(ctx context.Context, date time.Time, start timetable.ClockTime) ([]string, error)
}

// LeaveSource lists approved leaves for a date.
type LeaveSource interface {
	ApprovedOn(ctx context.Context, date time.Time) ([]leave.Request, error)
}

// AssignmentSource lists faculty already substituting at a moment.
type AssignmentSource interface {
	SubstitutesAt(ctx context.Context, date time.Time, start timetable.ClockTime) ([]string, error)
}

// Resolver evaluates availability. Pure queries, no writes.
type Resolver struct {
	slots       SlotSource
	leaves      LeaveSource
	assignments AssignmentSource
	midday      timetable.ClockTime
}

// NewResolver creates a resolver; midday is the morning/afternoon boundary
// for half-day leave coverage.
func NewResolver(slots SlotSource, leaves LeaveSource, assignments AssignmentSource, midday timetable.ClockTime) *Resolver {
	return &Resolver{slots: slots, leaves: leaves, assignments: assignments, midday: midday}
}

// Moment is the busy state of the whole roster at one date and start time.
// Loading it once lets a caller check many candidates without re-querying.
type Moment struct {
	teaching     map[string]struct{}
	onLeave      map[string]struct{}
	substituting map[string]struct{}
}

// At loads the busy sets for a date and start time.
func (r *Resolver) At(ctx context.Context, date time.Time, start timetable.ClockTime) (*Moment, error) {
	m := &Moment{
		teaching:     map[string]struct{}{},
		onLeave:      map[string]struct{}{},
		substituting: map[string]struct{}{},
	}
	busy, err := r.slots.BusyFaculty(ctx, date, start)
	if err != nil {
		return nil, err
	}
	for _, id := range busy {
		m.teaching[id] = struct{}{}
	}
	leaves, err := r.leaves.ApprovedOn(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, l := range leaves {
		if l.Kind.Covers(start, r.midday) {
			m.onLeave[l.FacultyID] = struct{}{}
		}
	}
	subbing, err := r.assignments.SubstitutesAt(ctx, date, start)
	if err != nil {
		return nil, err
	}
	for _, id := range subbing {
		m.substituting[id] = struct{}{}
	}
	return m, nil
}

// Check applies the disqualification rules in order: teaching elsewhere,
// covered by approved leave, already substituting.
func (m *Moment) Check(facultyID string) Check {
	if _, ok := m.teaching[facultyID]; ok {
		return Check{Reason: BusyTeaching}
	}
	if _, ok := m.onLeave[facultyID]; ok {
		return Check{Reason: BusyOnLeave}
	}
	if _, ok := m.substituting[facultyID]; ok {
		return Check{Reason: BusySubstituting}
	}
	return Check{Free: true}
}

// IsAvailable answers for a single faculty member.
func (r *Resolver) IsAvailable(ctx context.Context, facultyID string, date time.Time, start timetable.ClockTime) (Check, error) {
	m, err := r.At(ctx, date, start)
	if err != nil {
		return Check{}, err
	}
	return m.Check(facultyID), nil
}
