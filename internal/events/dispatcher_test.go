package events

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingHandler struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (r *recordingHandler) Handle(ctx context.Context, eventType string, payload any) error {
	r.mu.Lock()
	r.types = append(r.types, eventType)
	r.mu.Unlock()
	return r.err
}

func (r *recordingHandler) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func TestEmitFansOutToAllSubscribers(t *testing.T) {
	d := NewDispatcher(nil)
	first := &recordingHandler{}
	second := &recordingHandler{}
	d.Subscribe(first)
	d.Subscribe(second)

	d.Emit(TypeAppointmentStatusChangedV1, AppointmentStatusChangedV1{EventID: NewEventID()})
	d.Drain()

	for _, h := range []*recordingHandler{first, second} {
		seen := h.seen()
		if len(seen) != 1 || seen[0] != TypeAppointmentStatusChangedV1 {
			t.Fatalf("handler saw %v", seen)
		}
	}
}

func TestEmitSwallowsHandlerFailures(t *testing.T) {
	d := NewDispatcher(nil)
	failing := &recordingHandler{err: errors.New("smtp down")}
	healthy := &recordingHandler{}
	d.Subscribe(failing)
	d.Subscribe(healthy)

	d.Emit(TypeAppointmentRequestedV1, AppointmentRequestedV1{EventID: NewEventID()})
	d.Drain()

	if len(healthy.seen()) != 1 {
		t.Fatal("failure in one handler must not block the others")
	}
}

func TestEmitRecoversPanickingHandler(t *testing.T) {
	d := NewDispatcher(nil)
	d.Subscribe(HandlerFunc(func(context.Context, string, any) error {
		panic("boom")
	}))
	after := &recordingHandler{}
	d.Subscribe(after)

	d.Emit(TypeAppointmentRequestedV1, nil)
	d.Drain()

	if len(after.seen()) != 1 {
		t.Fatal("panic in one handler must not block the others")
	}
}

func TestEmitWithNoSubscribersIsNoOp(t *testing.T) {
	d := NewDispatcher(nil)
	d.Emit(TypeAppointmentRequestedV1, nil)
	d.Drain()
}
