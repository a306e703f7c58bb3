package transition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/store"
)

type stubStore struct {
	records map[string]*appointment.Appointment
	updates int
	err     error
}

func newStubStore(records ...*appointment.Appointment) *stubStore {
	s := &stubStore{records: make(map[string]*appointment.Appointment)}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *stubStore) FindByID(ctx context.Context, chatRoomID, appointmentID string) (*appointment.Appointment, error) {
	record, ok := s.records[appointmentID]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *stubStore) Update(ctx context.Context, chatRoomID, appointmentID string, patch store.Patch) (*appointment.Appointment, error) {
	s.updates++
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[appointmentID]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.SuggestedTime != nil {
		record.SuggestedTime = patch.SuggestedTime
	}
	if patch.PreferredDate != nil {
		record.PreferredDate = *patch.PreferredDate
	}
	if patch.PreferredTime != nil {
		record.PreferredTime = *patch.PreferredTime
	}
	copied := *record
	return &copied, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.AppointmentStatusChangedV1
}

func (r *recordingEmitter) Emit(eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if changed, ok := payload.(events.AppointmentStatusChangedV1); ok {
		r.events = append(r.events, changed)
	}
}

func requestedAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:            "appt-1",
		ChatRoomID:    "room-1",
		BusinessID:    "biz-1",
		Service:       "window washing",
		PreferredDate: "2025-06-20",
		PreferredTime: "14:00",
		Status:        appointment.StatusRequested,
	}
}

func newTestService(s *stubStore, emitter Emitter) *Service {
	svc := NewService(s, emitter, nil, nil)
	return svc.WithClock(func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) })
}

func TestApplyConfirmsRequested(t *testing.T) {
	stub := newStubStore(requestedAppointment())
	emitter := &recordingEmitter{}
	svc := newTestService(stub, emitter)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if updated.Status != appointment.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one status-changed event, got %d", len(emitter.events))
	}
	if emitter.events[0].FromStatus != "requested" || emitter.events[0].ToStatus != "confirmed" {
		t.Fatalf("unexpected event payload: %+v", emitter.events[0])
	}
}

func TestApplyRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newStubStore(requestedAppointment()), nil)

	_, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.Status("snoozed"),
	})
	if !errors.Is(err, appointment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyRejectsIllegalEdge(t *testing.T) {
	appt := requestedAppointment()
	appt.Status = appointment.StatusConfirmed
	svc := newTestService(newStubStore(appt), nil)

	// confirmed may not go back to requested.
	_, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusRequested,
	})
	if !errors.Is(err, appointment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyTerminalStatusesAreImmutable(t *testing.T) {
	for _, terminal := range []appointment.Status{appointment.StatusCompleted, appointment.StatusCanceled} {
		appt := requestedAppointment()
		appt.Status = terminal
		stub := newStubStore(appt)
		svc := newTestService(stub, nil)

		for _, to := range []appointment.Status{
			appointment.StatusRequested,
			appointment.StatusConfirmed,
			appointment.StatusRescheduleRequested,
		} {
			_, err := svc.Apply(context.Background(), Request{
				ChatRoomID: "room-1", AppointmentID: "appt-1", To: to,
			})
			if !errors.Is(err, appointment.ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", terminal, to, err)
			}
		}
		if stub.updates != 0 {
			t.Fatalf("terminal %s must never be written", terminal)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	appt := requestedAppointment()
	appt.Status = appointment.StatusConfirmed
	stub := newStubStore(appt)
	svc := newTestService(stub, nil)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("repeated transition should succeed, got %v", err)
	}
	if updated.Status != appointment.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if stub.updates != 0 {
		t.Fatal("repeated transition must not write")
	}
}

func TestApplyRescheduleRequiresSuggestion(t *testing.T) {
	stub := newStubStore(requestedAppointment())
	svc := newTestService(stub, nil)

	_, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusRescheduleRequested,
	})
	if !errors.Is(err, appointment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition without a suggestion, got %v", err)
	}
	if stub.updates != 0 {
		t.Fatal("guard failure must not write")
	}
}

func TestApplyReschedulePersistsSuggestion(t *testing.T) {
	stub := newStubStore(requestedAppointment())
	emitter := &recordingEmitter{}
	svc := newTestService(stub, emitter)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1",
		To:            appointment.StatusRescheduleRequested,
		SuggestedDate: "2025-06-21", SuggestedTime: "10:00",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	suggestion := updated.CurrentSuggestion()
	if suggestion == nil || suggestion.Date != "2025-06-21" || suggestion.Time != "10:00" {
		t.Fatalf("expected stored suggestion, got %+v", suggestion)
	}
	if len(emitter.events) != 1 || emitter.events[0].SuggestedDate != "2025-06-21" {
		t.Fatalf("expected event carrying the suggestion, got %+v", emitter.events)
	}
}

func TestApplyFreshCounterOfferReplacesSuggestion(t *testing.T) {
	appt := requestedAppointment()
	appt.Status = appointment.StatusRescheduleRequested
	appt.SuggestedTime = &appointment.SuggestedTime{Date: "2025-06-21", Time: "10:00"}
	stub := newStubStore(appt)
	svc := newTestService(stub, nil)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1",
		To:            appointment.StatusRescheduleRequested,
		SuggestedDate: "2025-06-22", SuggestedTime: "09:00",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if updated.CurrentSuggestion().Date != "2025-06-22" {
		t.Fatalf("expected replaced suggestion, got %+v", updated.CurrentSuggestion())
	}
	if stub.updates != 1 {
		t.Fatalf("expected one write, got %d", stub.updates)
	}
}

func TestApplyAcceptingSuggestionAdoptsSlot(t *testing.T) {
	appt := requestedAppointment()
	appt.Status = appointment.StatusRescheduleRequested
	appt.SuggestedTime = &appointment.SuggestedTime{Date: "2025-06-21", Time: "10:00"}
	stub := newStubStore(appt)
	svc := newTestService(stub, nil)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if updated.PreferredDate != "2025-06-21" || updated.PreferredTime != "10:00" {
		t.Fatalf("confirming a counter-offer should adopt the suggested slot, got %s %s",
			updated.PreferredDate, updated.PreferredTime)
	}
}

func TestApplyRescheduleBackToRequested(t *testing.T) {
	appt := requestedAppointment()
	appt.Status = appointment.StatusRescheduleRequested
	appt.SuggestedTime = &appointment.SuggestedTime{Date: "2025-06-21", Time: "10:00"}
	svc := newTestService(newStubStore(appt), nil)

	updated, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusRequested,
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if updated.Status != appointment.StatusRequested {
		t.Fatalf("expected requested, got %s", updated.Status)
	}
	if updated.CurrentSuggestion() != nil {
		t.Fatal("suggestion is only meaningful while reschedule_requested")
	}
}

func TestApplySurfacesStoreErrors(t *testing.T) {
	stub := newStubStore(requestedAppointment())
	stub.err = store.ErrPersistenceUncertain
	svc := newTestService(stub, nil)

	_, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "appt-1", To: appointment.StatusConfirmed,
	})
	if !errors.Is(err, store.ErrPersistenceUncertain) {
		t.Fatalf("expected ErrPersistenceUncertain, got %v", err)
	}
}

func TestApplyMissingAppointment(t *testing.T) {
	svc := newTestService(newStubStore(), nil)

	_, err := svc.Apply(context.Background(), Request{
		ChatRoomID: "room-1", AppointmentID: "missing", To: appointment.StatusConfirmed,
	})
	if !errors.Is(err, appointment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
