package leave

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"attendro/internal/queue"
	"attendro/internal/timetable"
)

// ApprovedMessageType tags queue messages announcing a newly approved leave.
const ApprovedMessageType = "leave.approved"

// ApprovedPayload is the queue message body for an approval.
type ApprovedPayload struct {
	LeaveID string `json:"leave_id"`
}

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, req Request) (Request, error)
	ByID(ctx context.Context, id string) (Request, error)
	UpdateStatus(ctx context.Context, id string, to Status) (Request, error)
}

// Publisher hands approval events to the substitution worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service owns the leave lifecycle.
type Service struct {
	store Store
	pub   Publisher
}

// NewService creates a service. pub may be nil when no worker is wired.
func NewService(store Store, pub Publisher) *Service {
	return &Service{store: store, pub: pub}
}

// Submit records a new PENDING leave request.
func (s *Service) Submit(ctx context.Context, facultyID string, date time.Time, kind Kind, reason string) (Request, error) {
	if facultyID == "" {
		return Request{}, errors.New("faculty id required")
	}
	if !kind.Valid() {
		return Request{}, errors.New("invalid leave type")
	}
	if !timetable.DayOf(date).Valid() {
		return Request{}, errors.New("leave date falls on a non-teaching day")
	}
	return s.store.Create(ctx, Request{FacultyID: facultyID, Date: date, Kind: kind, Reason: reason})
}

// Approve moves a PENDING request to APPROVED and announces it. The
// announcement is best effort; the caller runs resolution synchronously and
// the worker's stale-leave check makes a duplicate delivery harmless.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	req, err := s.store.UpdateStatus(ctx, id, Approved)
	if err != nil {
		return Request{}, err
	}
	if s.pub != nil {
		body, _ := json.Marshal(ApprovedPayload{LeaveID: req.ID})
		if err := s.pub.Publish(ctx, queue.Message{Type: ApprovedMessageType, Body: body}); err != nil {
			log.Printf("leave %s: approval publish failed: %v", req.ID, err)
		}
	}
	return req, nil
}

// Reject moves a PENDING request to REJECTED.
func (s *Service) Reject(ctx context.Context, id string) (Request, error) {
	return s.store.UpdateStatus(ctx, id, Rejected)
}
