package transfer

import (
	"context"
	"errors"
	"log"
	"time"

	"attendro/internal/metrics"
	"attendro/internal/substitution"
	"attendro/internal/timetable"
)

// Store is the transfer persistence surface.
type Store interface {
	Create(ctx context.Context, t Transfer) (Transfer, error)
	ByID(ctx context.Context, id string) (Transfer, error)
	Resolve(ctx context.Context, id string, to Status) (Transfer, error)
}

// SlotReader loads timetable slots.
type SlotReader interface {
	ByID(ctx context.Context, id string) (timetable.Slot, error)
}

// AssignmentWriter records the assignment an accepted transfer produces.
// It is the same store the automatic engine writes through, so the covered
// identity key is shared.
type AssignmentWriter interface {
	Insert(ctx context.Context, a substitution.Assignment) (substitution.Assignment, error)
}

// Workflow owns the peer-to-peer transfer lifecycle.
type Workflow struct {
	store       Store
	slots       SlotReader
	assignments AssignmentWriter
}

// NewWorkflow wires the workflow.
func NewWorkflow(store Store, slots SlotReader, assignments AssignmentWriter) *Workflow {
	return &Workflow{store: store, slots: slots, assignments: assignments}
}

// Request proposes handing one slot-occurrence to a colleague. The slot must
// belong to the requester and actually occur on the date.
func (w *Workflow) Request(ctx context.Context, fromFacultyID, toFacultyID, slotID string, date time.Time, reason string) (Transfer, error) {
	if fromFacultyID == "" || toFacultyID == "" || fromFacultyID == toFacultyID {
		return Transfer{}, errors.New("transfer needs two distinct faculty")
	}
	slot, err := w.slots.ByID(ctx, slotID)
	if err != nil {
		return Transfer{}, err
	}
	if slot.FacultyID != fromFacultyID {
		return Transfer{}, ErrNotSlotOwner
	}
	if !slot.ScheduledOn(date) {
		return Transfer{}, ErrSlotNotScheduled
	}
	return w.store.Create(ctx, Transfer{
		FromFacultyID: fromFacultyID,
		ToFacultyID:   toFacultyID,
		SlotID:        slotID,
		Date:          date,
		Reason:        reason,
	})
}

// Accept resolves a PENDING transfer and records the covering assignment
// (type TRANSFER, CONFIRMED) with the slot's real class and subject. If the
// automatic engine covered the slot first, the transfer still resolves and
// the existing assignment stands.
func (w *Workflow) Accept(ctx context.Context, id, respondingFacultyID string) (Transfer, *substitution.Assignment, error) {
	t, err := w.store.ByID(ctx, id)
	if err != nil {
		return Transfer{}, nil, err
	}
	if respondingFacultyID != "" && t.ToFacultyID != respondingFacultyID {
		return Transfer{}, nil, ErrNotRecipient
	}
	slot, err := w.slots.ByID(ctx, t.SlotID)
	if err != nil {
		return Transfer{}, nil, err
	}

	t, err = w.store.Resolve(ctx, id, Accepted)
	if err != nil {
		return Transfer{}, nil, err
	}

	a, err := w.assignments.Insert(ctx, substitution.Assignment{
		SrcFacultyID: t.FromFacultyID,
		SubFacultyID: t.ToFacultyID,
		ClassID:      slot.ClassID,
		SubjectID:    slot.SubjectID,
		Date:         t.Date,
		Start:        slot.Start,
		Status:       substitution.Confirmed,
		Type:         substitution.Transfer,
		AssignedBy:   t.ToFacultyID,
	})
	if errors.Is(err, substitution.ErrAlreadyCovered) {
		log.Printf("transfer %s: slot already covered, keeping existing assignment", t.ID)
		return t, nil, nil
	}
	if err != nil {
		return Transfer{}, nil, err
	}
	metrics.AssignmentsCreated.WithLabelValues(string(substitution.Transfer)).Inc()
	return t, &a, nil
}

// Reject resolves a PENDING transfer without side effects.
func (w *Workflow) Reject(ctx context.Context, id, respondingFacultyID string) (Transfer, error) {
	t, err := w.store.ByID(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if respondingFacultyID != "" && t.ToFacultyID != respondingFacultyID {
		return Transfer{}, ErrNotRecipient
	}
	return w.store.Resolve(ctx, id, Rejected)
}

// Cancel withdraws a PENDING transfer; only the requester may do it.
func (w *Workflow) Cancel(ctx context.Context, id, requestingFacultyID string) (Transfer, error) {
	t, err := w.store.ByID(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if requestingFacultyID != "" && t.FromFacultyID != requestingFacultyID {
		return Transfer{}, ErrNotRequester
	}
	return w.store.Resolve(ctx, id, Cancelled)
}
