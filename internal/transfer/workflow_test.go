package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"attendro/internal/substitution"
	"attendro/internal/timetable"
)

type memTransfers struct {
	byID   map[string]Transfer
	nextID int
}

func (m *memTransfers) Create(_ context.Context, t Transfer) (Transfer, error) {
	if m.byID == nil {
		m.byID = map[string]Transfer{}
	}
	m.nextID++
	t.ID = fmt.Sprintf("tr-%d", m.nextID)
	t.Status = Pending
	t.RequestedAt = time.Now().UTC()
	m.byID[t.ID] = t
	return t, nil
}

func (m *memTransfers) ByID(_ context.Context, id string) (Transfer, error) {
	t, ok := m.byID[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return t, nil
}

func (m *memTransfers) Resolve(_ context.Context, id string, to Status) (Transfer, error) {
	t, ok := m.byID[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	if t.Status != Pending {
		return Transfer{}, ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = to
	t.RespondedAt = &now
	m.byID[id] = t
	return t, nil
}

type memSlotReader struct{ slots map[string]timetable.Slot }

func (m *memSlotReader) ByID(_ context.Context, id string) (timetable.Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return timetable.Slot{}, timetable.ErrNotFound
	}
	return s, nil
}

type memAssignments struct {
	inserted []substitution.Assignment
	covered  bool
}

func (m *memAssignments) Insert(_ context.Context, a substitution.Assignment) (substitution.Assignment, error) {
	if m.covered {
		return substitution.Assignment{}, substitution.ErrAlreadyCovered
	}
	a.ID = "asg-1"
	m.inserted = append(m.inserted, a)
	return a, nil
}

var transferMonday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func fixtureSlot() timetable.Slot {
	return timetable.Slot{
		ID:        "slot-1",
		FacultyID: "alice",
		ClassID:   "cls-1",
		SubjectID: "math",
		Day:       timetable.Monday,
		Start:     timetable.MustClock("09:00"),
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newTestWorkflow() (*Workflow, *memTransfers, *memAssignments) {
	store := &memTransfers{}
	slots := &memSlotReader{slots: map[string]timetable.Slot{"slot-1": fixtureSlot()}}
	assignments := &memAssignments{}
	return NewWorkflow(store, slots, assignments), store, assignments
}

func TestRequestValidation(t *testing.T) {
	wf, _, _ := newTestWorkflow()
	ctx := context.Background()

	if _, err := wf.Request(ctx, "alice", "alice", "slot-1", transferMonday, ""); err == nil {
		t.Error("self-transfer accepted")
	}
	if _, err := wf.Request(ctx, "mallory", "bob", "slot-1", transferMonday, ""); !errors.Is(err, ErrNotSlotOwner) {
		t.Errorf("expected ErrNotSlotOwner, got %v", err)
	}
	tuesday := transferMonday.AddDate(0, 0, 1)
	if _, err := wf.Request(ctx, "alice", "bob", "slot-1", tuesday, ""); !errors.Is(err, ErrSlotNotScheduled) {
		t.Errorf("expected ErrSlotNotScheduled, got %v", err)
	}
	if _, err := wf.Request(ctx, "alice", "bob", "slot-9", transferMonday, ""); !errors.Is(err, timetable.ErrNotFound) {
		t.Errorf("expected slot lookup failure, got %v", err)
	}

	tr, err := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "conference")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if tr.Status != Pending {
		t.Errorf("status = %s, want PENDING", tr.Status)
	}
}

func TestAcceptRecordsAssignment(t *testing.T) {
	wf, _, assignments := newTestWorkflow()
	ctx := context.Background()

	tr, err := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	accepted, a, err := wf.Accept(ctx, tr.ID, "bob")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != Accepted || accepted.RespondedAt == nil {
		t.Errorf("transfer = %+v, want ACCEPTED with responded_at", accepted)
	}
	if a == nil {
		t.Fatal("expected an assignment")
	}
	if a.ClassID != "cls-1" || a.SubjectID != "math" || a.Start != timetable.MustClock("09:00") {
		t.Errorf("assignment carries %s/%s at %s, want slot's class, subject and start", a.ClassID, a.SubjectID, a.Start)
	}
	if a.SrcFacultyID != "alice" || a.SubFacultyID != "bob" {
		t.Errorf("assignment %s -> %s, want alice -> bob", a.SrcFacultyID, a.SubFacultyID)
	}
	if a.Status != substitution.Confirmed || a.Type != substitution.Transfer {
		t.Errorf("assignment %s/%s, want CONFIRMED/TRANSFER", a.Status, a.Type)
	}
	if len(assignments.inserted) != 1 {
		t.Errorf("inserted %d assignments, want 1", len(assignments.inserted))
	}
}

func TestAcceptWhenSlotAlreadyCovered(t *testing.T) {
	wf, _, assignments := newTestWorkflow()
	assignments.covered = true
	ctx := context.Background()

	tr, err := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	accepted, a, err := wf.Accept(ctx, tr.ID, "bob")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != Accepted {
		t.Errorf("status = %s, want ACCEPTED even when covered", accepted.Status)
	}
	if a != nil {
		t.Errorf("expected no new assignment, got %+v", a)
	}
}

func TestAcceptRequiresRecipient(t *testing.T) {
	wf, _, _ := newTestWorkflow()
	ctx := context.Background()

	tr, _ := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "")
	if _, _, err := wf.Accept(ctx, tr.ID, "mallory"); !errors.Is(err, ErrNotRecipient) {
		t.Errorf("expected ErrNotRecipient, got %v", err)
	}
}

func TestRejectAndCancel(t *testing.T) {
	wf, _, _ := newTestWorkflow()
	ctx := context.Background()

	tr, _ := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "")
	if _, err := wf.Cancel(ctx, tr.ID, "bob"); !errors.Is(err, ErrNotRequester) {
		t.Errorf("expected ErrNotRequester, got %v", err)
	}
	rejected, err := wf.Reject(ctx, tr.ID, "bob")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != Rejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}

	// resolved transfers take no further transitions
	if _, _, err := wf.Accept(ctx, tr.ID, "bob"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	tr2, _ := wf.Request(ctx, "alice", "bob", "slot-1", transferMonday, "")
	cancelled, err := wf.Cancel(ctx, tr2.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != Cancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
}
