package substitution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"attendro/internal/availability"
	"attendro/internal/leave"
	"attendro/internal/metrics"
	"attendro/internal/roster"
	"attendro/internal/timetable"
)

// ErrStaleLeave means resolution was invoked for a leave that is no longer
// APPROVED; the engine refuses to assign anything.
var ErrStaleLeave = errors.New("leave is not approved")

// SlotLister enumerates a faculty's slots scheduled on a date.
type SlotLister interface {
	SlotsFor(ctx context.Context, facultyID string, date time.Time) ([]timetable.Slot, error)
}

// Pool supplies substitute candidates.
type Pool interface {
	ActiveFaculty(ctx context.Context, excludeID string) ([]roster.Faculty, error)
	AllocatedFaculty(ctx context.Context, subjectID string) ([]string, error)
	ByID(ctx context.Context, id string) (roster.Faculty, error)
}

// Store is the assignment persistence the engine writes through.
type Store interface {
	Insert(ctx context.Context, a Assignment) (Assignment, error)
	CoveredTimes(ctx context.Context, srcFacultyID string, date time.Time) ([]timetable.ClockTime, error)
}

// LeaveReader loads leaves for the stale check.
type LeaveReader interface {
	ByID(ctx context.Context, id string) (leave.Request, error)
}

// UncoveredSlot reports a slot the engine could not cover.
type UncoveredSlot struct {
	SlotID    string
	ClassID   string
	SubjectID string
	Start     timetable.ClockTime
}

// Summary is what a resolution run produced.
type Summary struct {
	Assigned  []Assignment
	Uncovered []UncoveredSlot
}

// Engine finds substitutes for a leave-affected faculty/date pair.
type Engine struct {
	slots  SlotLister
	pool   Pool
	store  Store
	leaves LeaveReader
	avail  *availability.Resolver
	midday timetable.ClockTime
}

// NewEngine wires the engine.
func NewEngine(slots SlotLister, pool Pool, store Store, leaves LeaveReader, avail *availability.Resolver, midday timetable.ClockTime) *Engine {
	return &Engine{slots: slots, pool: pool, store: store, leaves: leaves, avail: avail, midday: midday}
}

// ResolveLeave runs automatic resolution for an approved leave. It no-ops
// with ErrStaleLeave if the leave has moved out of APPROVED since the
// trigger fired.
func (e *Engine) ResolveLeave(ctx context.Context, leaveID string) (Summary, error) {
	req, err := e.leaves.ByID(ctx, leaveID)
	if err != nil {
		return Summary{}, err
	}
	if req.Status != leave.Approved {
		return Summary{}, fmt.Errorf("%w: leave %s is %s", ErrStaleLeave, leaveID, req.Status)
	}
	return e.Resolve(ctx, req.FacultyID, req.Date, req.Kind, Auto, "")
}

// Resolve enumerates the faculty's slots on date, skips ones already covered
// or outside the leave window, and assigns the first available candidate to
// each remaining slot. Automatic runs persist CONFIRMED assignments; manual
// runs persist PENDING ones awaiting admin confirmation. Slots with no free
// candidate are returned uncovered, which is a normal outcome.
func (e *Engine) Resolve(ctx context.Context, facultyID string, date time.Time, window leave.Kind, mode Type, assignedBy string) (Summary, error) {
	slots, err := e.slots.SlotsFor(ctx, facultyID, date)
	if err != nil {
		return Summary{}, err
	}
	covered, err := e.store.CoveredTimes(ctx, facultyID, date)
	if err != nil {
		return Summary{}, err
	}
	coveredSet := make(map[timetable.ClockTime]struct{}, len(covered))
	for _, ct := range covered {
		coveredSet[ct] = struct{}{}
	}

	status := Confirmed
	if mode == Manual {
		status = Pending
	}

	var summary Summary
	for _, slot := range slots {
		if _, ok := coveredSet[slot.Start]; ok {
			continue
		}
		if !window.Covers(slot.Start, e.midday) {
			continue
		}

		candidates, err := e.candidates(ctx, facultyID, slot.SubjectID)
		if err != nil {
			return Summary{}, err
		}
		moment, err := e.avail.At(ctx, date, slot.Start)
		if err != nil {
			return Summary{}, err
		}

		var picked string
		for _, c := range candidates {
			if moment.Check(c).Free {
				picked = c
				break
			}
		}
		if picked == "" {
			summary.Uncovered = append(summary.Uncovered, UncoveredSlot{
				SlotID: slot.ID, ClassID: slot.ClassID, SubjectID: slot.SubjectID, Start: slot.Start,
			})
			metrics.SlotsUncovered.Inc()
			continue
		}

		a, err := e.store.Insert(ctx, Assignment{
			SrcFacultyID: facultyID,
			SubFacultyID: picked,
			ClassID:      slot.ClassID,
			SubjectID:    slot.SubjectID,
			Date:         date,
			Start:        slot.Start,
			Status:       status,
			Type:         mode,
			AssignedBy:   assignedBy,
		})
		if errors.Is(err, ErrAlreadyCovered) {
			// A concurrent run got there first; that counts as covered.
			log.Printf("resolve %s %s: slot %s covered concurrently", facultyID, date.Format("2006-01-02"), slot.Start)
			continue
		}
		if err != nil {
			return Summary{}, err
		}
		metrics.AssignmentsCreated.WithLabelValues(string(mode)).Inc()
		summary.Assigned = append(summary.Assigned, a)
		coveredSet[slot.Start] = struct{}{}
	}
	return summary, nil
}

// candidates builds the pool in its documented order: faculty allocated to
// the slot's subject first, then the leave-holder's department colleagues,
// then everyone else, each group in roster order.
func (e *Engine) candidates(ctx context.Context, facultyID, subjectID string) ([]string, error) {
	active, err := e.pool.ActiveFaculty(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	allocated, err := e.pool.AllocatedFaculty(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	allocSet := make(map[string]struct{}, len(allocated))
	for _, id := range allocated {
		allocSet[id] = struct{}{}
	}

	dept := ""
	if src, err := e.pool.ByID(ctx, facultyID); err == nil {
		dept = src.Department
	} else if !errors.Is(err, roster.ErrNotFound) {
		return nil, err
	}

	var sameSubject, sameDept, rest []string
	for _, f := range active {
		switch {
		case contains(allocSet, f.ID):
			sameSubject = append(sameSubject, f.ID)
		case dept != "" && f.Department == dept:
			sameDept = append(sameDept, f.ID)
		default:
			rest = append(rest, f.ID)
		}
	}
	out := make([]string, 0, len(active))
	out = append(out, sameSubject...)
	out = append(out, sameDept...)
	out = append(out, rest...)
	return out, nil
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
