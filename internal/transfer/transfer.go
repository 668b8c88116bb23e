package transfer

import (
	"errors"
	"time"
)

// Status is the transfer lifecycle state. All transitions leave PENDING and
// never come back.
type Status string

const (
	Pending   Status = "PENDING"
	Accepted  Status = "ACCEPTED"
	Rejected  Status = "REJECTED"
	Cancelled Status = "CANCELLED"
)

// Transfer is a peer-to-peer proposal to hand one slot-occurrence to a named
// colleague.
type Transfer struct {
	ID            string
	FromFacultyID string
	ToFacultyID   string
	SlotID        string
	Date          time.Time
	Reason        string
	Status        Status
	RequestedAt   time.Time
	RespondedAt   *time.Time
	CreatedAt     time.Time
}

var (
	// ErrNotFound means no transfer matched the id.
	ErrNotFound = errors.New("transfer not found")
	// ErrInvalidTransition means the transfer is no longer PENDING.
	ErrInvalidTransition = errors.New("transfer is not pending")
	// ErrNotRequester means someone other than the requester tried to cancel.
	ErrNotRequester = errors.New("only the requester may cancel a transfer")
	// ErrNotRecipient means someone other than the named colleague tried to
	// respond.
	ErrNotRecipient = errors.New("only the named colleague may respond")
	// ErrSlotNotScheduled means the slot has no occurrence on the requested
	// date (wrong weekday or outside the validity window).
	ErrSlotNotScheduled = errors.New("slot is not scheduled on that date")
	// ErrNotSlotOwner means the requester does not teach the slot.
	ErrNotSlotOwner = errors.New("slot does not belong to the requesting faculty")
)
