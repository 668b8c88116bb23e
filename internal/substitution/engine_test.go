package substitution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"attendro/internal/availability"
	"attendro/internal/leave"
	"attendro/internal/roster"
	"attendro/internal/timetable"
)

// memStore keeps assignments in memory and enforces the same covered-identity
// rule the partial unique index does: one live assignment per
// (src_faculty_id, date, start_time).
type memStore struct {
	assignments []Assignment
	nextID      int
}

func (m *memStore) Insert(_ context.Context, a Assignment) (Assignment, error) {
	for _, ex := range m.assignments {
		if ex.Status == Cancelled {
			continue
		}
		if ex.SrcFacultyID == a.SrcFacultyID && ex.Date.Equal(a.Date) && ex.Start == a.Start {
			return Assignment{}, ErrAlreadyCovered
		}
	}
	m.nextID++
	a.ID = fmt.Sprintf("asg-%d", m.nextID)
	a.CreatedAt = time.Now()
	m.assignments = append(m.assignments, a)
	return a, nil
}

func (m *memStore) CoveredTimes(_ context.Context, srcFacultyID string, date time.Time) ([]timetable.ClockTime, error) {
	var out []timetable.ClockTime
	for _, a := range m.assignments {
		if a.Status != Cancelled && a.SrcFacultyID == srcFacultyID && a.Date.Equal(date) {
			out = append(out, a.Start)
		}
	}
	return out, nil
}

func (m *memStore) SubstitutesAt(_ context.Context, date time.Time, start timetable.ClockTime) ([]string, error) {
	var out []string
	for _, a := range m.assignments {
		if a.Status != Cancelled && a.Date.Equal(date) && a.Start == start {
			out = append(out, a.SubFacultyID)
		}
	}
	return out, nil
}

type memSlots struct{ slots []timetable.Slot }

func (m *memSlots) SlotsFor(_ context.Context, facultyID string, date time.Time) ([]timetable.Slot, error) {
	var out []timetable.Slot
	for _, s := range m.slots {
		if s.FacultyID == facultyID && s.ScheduledOn(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSlots) ByID(_ context.Context, id string) (timetable.Slot, error) {
	for _, s := range m.slots {
		if s.ID == id {
			return s, nil
		}
	}
	return timetable.Slot{}, timetable.ErrNotFound
}

func (m *memSlots) BusyFaculty(_ context.Context, date time.Time, start timetable.ClockTime) ([]string, error) {
	var out []string
	for _, s := range m.slots {
		if s.Start == start && s.ScheduledOn(date) {
			out = append(out, s.FacultyID)
		}
	}
	return out, nil
}

type memPool struct {
	faculty   []roster.Faculty
	allocated map[string][]string
}

func (m *memPool) ActiveFaculty(_ context.Context, excludeID string) ([]roster.Faculty, error) {
	var out []roster.Faculty
	for _, f := range m.faculty {
		if f.ID != excludeID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memPool) AllocatedFaculty(_ context.Context, subjectID string) ([]string, error) {
	return m.allocated[subjectID], nil
}

func (m *memPool) ByID(_ context.Context, id string) (roster.Faculty, error) {
	for _, f := range m.faculty {
		if f.ID == id {
			return f, nil
		}
	}
	return roster.Faculty{}, roster.ErrNotFound
}

type memLeaves struct{ byID map[string]leave.Request }

func (m *memLeaves) ByID(_ context.Context, id string) (leave.Request, error) {
	req, ok := m.byID[id]
	if !ok {
		return leave.Request{}, leave.ErrNotFound
	}
	return req, nil
}

func (m *memLeaves) ApprovedOn(_ context.Context, date time.Time) ([]leave.Request, error) {
	var out []leave.Request
	for _, req := range m.byID {
		if req.Status == leave.Approved && req.Date.Equal(date) {
			out = append(out, req)
		}
	}
	return out, nil
}

// monday is a teaching day inside every fixture slot's validity range.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func weeklySlot(id, facultyID, classID, subjectID, start string) timetable.Slot {
	return timetable.Slot{
		ID:        id,
		FacultyID: facultyID,
		ClassID:   classID,
		SubjectID: subjectID,
		Day:       timetable.Monday,
		Start:     timetable.MustClock(start),
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(slots *memSlots, pool *memPool, store *memStore, leaves *memLeaves) *Engine {
	midday := timetable.MustClock("12:30")
	resolver := availability.NewResolver(slots, leaves, store, midday)
	return NewEngine(slots, pool, store, leaves, resolver, midday)
}

func TestResolvePrefersSubjectAllocated(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
	}}
	pool := &memPool{
		faculty: []roster.Faculty{
			{ID: "src", Department: "CS"},
			{ID: "colleague", Department: "CS"},
			{ID: "mathematician", Department: "Math"},
		},
		allocated: map[string][]string{"math": {"mathematician"}},
	}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	summary, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Auto, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(summary.Assigned) != 1 {
		t.Fatalf("assigned %d, want 1", len(summary.Assigned))
	}
	a := summary.Assigned[0]
	if a.SubFacultyID != "mathematician" {
		t.Errorf("picked %q, want subject-allocated mathematician", a.SubFacultyID)
	}
	if a.Status != Confirmed || a.Type != Auto {
		t.Errorf("got %s/%s, want CONFIRMED/AUTO", a.Status, a.Type)
	}
}

func TestResolveFallsBackToDepartment(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
		// the subject-allocated candidate teaches at the same time
		weeklySlot("slot-2", "mathematician", "cls-2", "math", "09:00"),
	}}
	pool := &memPool{
		faculty: []roster.Faculty{
			{ID: "src", Department: "CS"},
			{ID: "outsider", Department: "Physics"},
			{ID: "colleague", Department: "CS"},
			{ID: "mathematician", Department: "Math"},
		},
		allocated: map[string][]string{"math": {"mathematician"}},
	}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	summary, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Auto, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(summary.Assigned) != 1 {
		t.Fatalf("assigned %d, want 1", len(summary.Assigned))
	}
	if got := summary.Assigned[0].SubFacultyID; got != "colleague" {
		t.Errorf("picked %q, want same-department colleague", got)
	}
}

func TestResolveReportsUncovered(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
		weeklySlot("slot-2", "busy", "cls-2", "math", "09:00"),
	}}
	pool := &memPool{faculty: []roster.Faculty{
		{ID: "src", Department: "CS"},
		{ID: "busy", Department: "CS"},
	}}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	summary, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Auto, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(summary.Assigned) != 0 {
		t.Errorf("assigned %d, want 0", len(summary.Assigned))
	}
	if len(summary.Uncovered) != 1 || summary.Uncovered[0].SlotID != "slot-1" {
		t.Fatalf("uncovered = %+v, want slot-1", summary.Uncovered)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
		weeklySlot("slot-2", "src", "cls-1", "math", "11:00"),
	}}
	pool := &memPool{faculty: []roster.Faculty{
		{ID: "src", Department: "CS"},
		{ID: "sub", Department: "CS"},
	}}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	first, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Auto, "")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if len(first.Assigned) != 2 {
		t.Fatalf("first run assigned %d, want 2", len(first.Assigned))
	}

	second, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Auto, "")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if len(second.Assigned) != 0 || len(second.Uncovered) != 0 {
		t.Errorf("second run assigned %d uncovered %d, want 0/0", len(second.Assigned), len(second.Uncovered))
	}
	if len(store.assignments) != 2 {
		t.Errorf("store holds %d assignments, want 2", len(store.assignments))
	}
}

func TestResolveHonoursHalfDayWindow(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-am", "src", "cls-1", "math", "09:00"),
		weeklySlot("slot-pm", "src", "cls-1", "math", "14:00"),
	}}
	pool := &memPool{faculty: []roster.Faculty{
		{ID: "src", Department: "CS"},
		{ID: "sub", Department: "CS"},
	}}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	summary, err := engine.Resolve(context.Background(), "src", monday, leave.HalfMorning, Auto, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(summary.Assigned) != 1 {
		t.Fatalf("assigned %d, want only the morning slot", len(summary.Assigned))
	}
	if got := summary.Assigned[0].Start; got != timetable.MustClock("09:00") {
		t.Errorf("assigned slot at %s, want 09:00", got)
	}
}

func TestResolveManualCreatesPending(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
	}}
	pool := &memPool{faculty: []roster.Faculty{
		{ID: "src", Department: "CS"},
		{ID: "sub", Department: "CS"},
	}}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, &memLeaves{})

	summary, err := engine.Resolve(context.Background(), "src", monday, leave.FullDay, Manual, "admin-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(summary.Assigned) != 1 {
		t.Fatalf("assigned %d, want 1", len(summary.Assigned))
	}
	a := summary.Assigned[0]
	if a.Status != Pending || a.Type != Manual || a.AssignedBy != "admin-1" {
		t.Errorf("got %s/%s by %q, want PENDING/MANUAL by admin-1", a.Status, a.Type, a.AssignedBy)
	}
}

func TestResolveLeaveRejectsStaleLeave(t *testing.T) {
	leaves := &memLeaves{byID: map[string]leave.Request{
		"lv-1": {ID: "lv-1", FacultyID: "src", Date: monday, Kind: leave.FullDay, Status: leave.Pending},
	}}
	engine := newTestEngine(&memSlots{}, &memPool{}, &memStore{}, leaves)

	_, err := engine.ResolveLeave(context.Background(), "lv-1")
	if !errors.Is(err, ErrStaleLeave) {
		t.Fatalf("expected ErrStaleLeave, got %v", err)
	}
}

func TestResolveLeaveRunsForApprovedLeave(t *testing.T) {
	slots := &memSlots{slots: []timetable.Slot{
		weeklySlot("slot-1", "src", "cls-1", "math", "09:00"),
	}}
	pool := &memPool{faculty: []roster.Faculty{
		{ID: "src", Department: "CS"},
		{ID: "sub", Department: "CS"},
	}}
	leaves := &memLeaves{byID: map[string]leave.Request{
		"lv-1": {ID: "lv-1", FacultyID: "src", Date: monday, Kind: leave.FullDay, Status: leave.Approved},
	}}
	store := &memStore{}
	engine := newTestEngine(slots, pool, store, leaves)

	summary, err := engine.ResolveLeave(context.Background(), "lv-1")
	if err != nil {
		t.Fatalf("ResolveLeave: %v", err)
	}
	if len(summary.Assigned) != 1 || summary.Assigned[0].Type != Auto {
		t.Fatalf("summary = %+v, want one AUTO assignment", summary)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{Pending, Confirmed, true},
		{Pending, Cancelled, true},
		{Confirmed, Completed, true},
		{Confirmed, Cancelled, true},
		{Pending, Completed, false},
		{Completed, Cancelled, false},
		{Cancelled, Confirmed, false},
		{Completed, Confirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
