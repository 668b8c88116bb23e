package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendro/internal/metrics"
	"attendro/internal/substitution"
	"attendro/internal/timetable"
)

var (
	// ErrTooEarly means the capture window has not opened yet.
	ErrTooEarly = errors.New("attendance window not open yet")
	// ErrWindowClosed means the grace period has elapsed.
	ErrWindowClosed = errors.New("attendance window closed")
	// ErrNoStudents means a submission carried no records.
	ErrNoStudents = errors.New("submission has no student records")
)

// Store is the persistence surface the service needs.
type Store interface {
	Exists(ctx context.Context, key Key) (bool, error)
	CreateWithRecords(ctx context.Context, s Session, records []Record) (Session, error)
	SessionsFor(ctx context.Context, facultyID string, date time.Time) ([]Session, error)
}

// SlotLister enumerates a faculty's own slots on a date.
type SlotLister interface {
	SlotsFor(ctx context.Context, facultyID string, date time.Time) ([]timetable.Slot, error)
}

// DutyLister enumerates confirmed substitution duties.
type DutyLister interface {
	List(ctx context.Context, f substitution.Filters) ([]substitution.Assignment, error)
}

// Service gates and records attendance capture.
type Service struct {
	store  Store
	slots  SlotLister
	duties DutyLister
	win    Window
}

// NewService creates the service.
func NewService(store Store, slots SlotLister, duties DutyLister, win Window) *Service {
	return &Service{store: store, slots: slots, duties: duties, win: win}
}

// SubmitInput is one attendance submission for a slot-occurrence.
type SubmitInput struct {
	ClassID        string
	SubjectID      string
	BatchID        *string
	FacultyID      string
	Date           time.Time
	Start          timetable.ClockTime
	IsSubstitution bool
	Records        []Record
}

// Submit re-derives the gate state server-side and, only while Open, creates
// the session and records atomically. The storage constraint is the final
// word on duplicates; the Exists pre-check just produces the error earlier.
func (s *Service) Submit(ctx context.Context, now time.Time, in SubmitInput) (Session, error) {
	if len(in.Records) == 0 {
		return Session{}, ErrNoStudents
	}
	key := Key{ClassID: in.ClassID, SubjectID: in.SubjectID, BatchID: in.BatchID, Date: in.Date, Start: in.Start}
	captured, err := s.store.Exists(ctx, key)
	if err != nil {
		return Session{}, err
	}

	switch state := State(now, in.Date, in.Start, captured, s.win); state {
	case Captured:
		metrics.DuplicateSubmissions.Inc()
		return Session{}, ErrDuplicateSession
	case Upcoming:
		wait := OpensIn(now, in.Date, in.Start, s.win)
		return Session{}, fmt.Errorf("%w: opens in %d minute(s)", ErrTooEarly, int(wait.Minutes())+1)
	case Expired:
		return Session{}, ErrWindowClosed
	}

	created, err := s.store.CreateWithRecords(ctx, Session{
		ClassID:        in.ClassID,
		SubjectID:      in.SubjectID,
		BatchID:        in.BatchID,
		FacultyID:      in.FacultyID,
		Date:           in.Date,
		Start:          in.Start,
		IsSubstitution: in.IsSubstitution,
	}, in.Records)
	if errors.Is(err, ErrDuplicateSession) {
		metrics.DuplicateSubmissions.Inc()
		return Session{}, err
	}
	if err != nil {
		return Session{}, err
	}
	metrics.SessionsCaptured.Inc()
	return created, nil
}

// GateFor derives the state for one occurrence without submitting.
func (s *Service) GateFor(ctx context.Context, now time.Time, key Key) (GateState, error) {
	captured, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	return State(now, key.Date, key.Start, captured, s.win), nil
}

// SlotView is one entry in a faculty's day: an own slot or a substitution
// duty, with its derived gate state.
type SlotView struct {
	SlotID         string
	ClassID        string
	SubjectID      string
	BatchID        *string
	Start          timetable.ClockTime
	Room           string
	IsSubstitution bool
	State          GateState
	SessionID      string
}

// TodayView lists the faculty's occurrences for the date: their own slots
// plus confirmed substitution duties, each with the derived gate state.
func (s *Service) TodayView(ctx context.Context, now time.Time, facultyID string, date time.Time) ([]SlotView, error) {
	slots, err := s.slots.SlotsFor(ctx, facultyID, date)
	if err != nil {
		return nil, err
	}
	duties, err := s.duties.List(ctx, substitution.Filters{
		Date: &date, SubFacultyID: facultyID, Status: substitution.Confirmed,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.SessionsFor(ctx, facultyID, date)
	if err != nil {
		return nil, err
	}
	bySlot := make(map[timetable.ClockTime]Session, len(sessions))
	for _, sess := range sessions {
		bySlot[sess.Start] = sess
	}

	var out []SlotView
	appendView := func(v SlotView) {
		sess, captured := bySlot[v.Start]
		if captured {
			v.SessionID = sess.ID
		}
		v.State = State(now, date, v.Start, captured, s.win)
		out = append(out, v)
	}
	for _, slot := range slots {
		appendView(SlotView{
			SlotID:    slot.ID,
			ClassID:   slot.ClassID,
			SubjectID: slot.SubjectID,
			BatchID:   slot.BatchID,
			Start:     slot.Start,
			Room:      slot.Room,
		})
	}
	for _, duty := range duties {
		appendView(SlotView{
			ClassID:        duty.ClassID,
			SubjectID:      duty.SubjectID,
			Start:          duty.Start,
			IsSubstitution: true,
		})
	}
	return out, nil
}
