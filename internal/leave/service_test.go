package leave

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"attendro/internal/queue"
)

type memLeaveStore struct {
	byID map[string]Request
}

func (m *memLeaveStore) Create(_ context.Context, req Request) (Request, error) {
	if m.byID == nil {
		m.byID = map[string]Request{}
	}
	req.ID = "lv-1"
	req.Status = Pending
	req.CreatedAt = time.Now().UTC()
	m.byID[req.ID] = req
	return req, nil
}

func (m *memLeaveStore) ByID(_ context.Context, id string) (Request, error) {
	req, ok := m.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (m *memLeaveStore) UpdateStatus(_ context.Context, id string, to Status) (Request, error) {
	req, ok := m.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if req.Status != Pending {
		return Request{}, ErrInvalidTransition
	}
	req.Status = to
	m.byID[id] = req
	return req, nil
}

type capturePublisher struct{ published []queue.Message }

func (p *capturePublisher) Publish(_ context.Context, msg queue.Message) error {
	p.published = append(p.published, msg)
	return nil
}

var leaveMonday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestSubmitValidation(t *testing.T) {
	svc := NewService(&memLeaveStore{}, nil)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "", leaveMonday, FullDay, ""); err == nil {
		t.Error("missing faculty id accepted")
	}
	if _, err := svc.Submit(ctx, "fac-1", leaveMonday, Kind("SABBATICAL"), ""); err == nil {
		t.Error("unknown kind accepted")
	}
	sunday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Submit(ctx, "fac-1", sunday, FullDay, ""); err == nil {
		t.Error("sunday leave accepted")
	}

	req, err := svc.Submit(ctx, "fac-1", leaveMonday, HalfMorning, "dentist")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.Status != Pending {
		t.Errorf("status = %s, want PENDING", req.Status)
	}
}

func TestApprovePublishesEvent(t *testing.T) {
	store := &memLeaveStore{}
	pub := &capturePublisher{}
	svc := NewService(store, pub)
	ctx := context.Background()

	req, err := svc.Submit(ctx, "fac-1", leaveMonday, FullDay, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	approved, err := svc.Approve(ctx, req.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != Approved {
		t.Errorf("status = %s, want APPROVED", approved.Status)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Type != ApprovedMessageType {
		t.Errorf("message type = %q, want %q", msg.Type, ApprovedMessageType)
	}
	var payload ApprovedPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.LeaveID != req.ID {
		t.Errorf("payload leave id = %q, want %q", payload.LeaveID, req.ID)
	}
}

func TestStatusTransitionsAreOneWay(t *testing.T) {
	store := &memLeaveStore{}
	svc := NewService(store, nil)
	ctx := context.Background()

	req, _ := svc.Submit(ctx, "fac-1", leaveMonday, FullDay, "")
	if _, err := svc.Reject(ctx, req.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := svc.Approve(ctx, req.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after reject, got %v", err)
	}
}
