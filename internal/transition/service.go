package transition

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/internal/store"
	"github.com/bookline-ai/bookline/pkg/logging"
)

var transitionTracer = otel.Tracer("bookline.internal.transition")

// allowed maps each status to the statuses it may move to. Absent keys
// (completed, canceled) are terminal.
var allowed = map[appointment.Status][]appointment.Status{
	appointment.StatusRequested: {
		appointment.StatusConfirmed,
		appointment.StatusCanceled,
		appointment.StatusRescheduleRequested,
	},
	appointment.StatusConfirmed: {
		appointment.StatusCompleted,
		appointment.StatusCanceled,
	},
	appointment.StatusRescheduleRequested: {
		appointment.StatusConfirmed,
		appointment.StatusCanceled,
		appointment.StatusRequested,
	},
}

// Allowed reports whether the state machine permits from -> to.
func Allowed(from, to appointment.Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Store is the slice of the appointment store the service needs.
type Store interface {
	FindByID(ctx context.Context, chatRoomID, appointmentID string) (*appointment.Appointment, error)
	Update(ctx context.Context, chatRoomID, appointmentID string, patch store.Patch) (*appointment.Appointment, error)
}

// Emitter publishes lifecycle events without blocking the caller.
type Emitter interface {
	Emit(eventType string, payload any)
}

// Request describes one attempted status change. SuggestedDate and
// SuggestedTime carry the business's counter-offer and are required when
// moving to reschedule_requested.
type Request struct {
	ChatRoomID    string
	AppointmentID string
	To            appointment.Status
	SuggestedDate string
	SuggestedTime string
}

// Service applies appointment status transitions. All writes go through
// the verified appointment store, so a reported transition is one that is
// actually readable back.
type Service struct {
	store   Store
	emitter Emitter
	logger  *logging.Logger
	metrics *metrics.EngineMetrics
	now     func() time.Time
}

// NewService constructs a transition service. emitter and engineMetrics
// may be nil.
func NewService(s Store, emitter Emitter, logger *logging.Logger, engineMetrics *metrics.EngineMetrics) *Service {
	if s == nil {
		panic("transition: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   s,
		emitter: emitter,
		logger:  logger,
		metrics: engineMetrics,
		now:     time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Apply moves an appointment to the requested status. Repeating an
// already-applied transition is a no-op success, except a fresh
// reschedule counter-offer, which replaces the stored suggestion.
func (s *Service) Apply(ctx context.Context, req Request) (*appointment.Appointment, error) {
	ctx, span := transitionTracer.Start(ctx, "transition.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("bookline.appointment_id", req.AppointmentID),
		attribute.String("bookline.to_status", string(req.To)),
	)

	if !req.To.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", appointment.ErrInvalidTransition, req.To)
	}

	record, err := s.store.FindByID(ctx, req.ChatRoomID, req.AppointmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	from := record.Status

	if from == req.To {
		if req.To == appointment.StatusRescheduleRequested && s.newSuggestion(record, req) {
			return s.apply(ctx, record, req)
		}
		return record, nil
	}

	if from.Terminal() {
		s.metrics.ObserveTransition(string(from), string(req.To), "rejected")
		return nil, fmt.Errorf("%w: %s is terminal", appointment.ErrInvalidTransition, from)
	}
	if !Allowed(from, req.To) {
		s.metrics.ObserveTransition(string(from), string(req.To), "rejected")
		return nil, fmt.Errorf("%w: %s -> %s", appointment.ErrInvalidTransition, from, req.To)
	}
	if req.To == appointment.StatusRescheduleRequested && (req.SuggestedDate == "" || req.SuggestedTime == "") {
		s.metrics.ObserveTransition(string(from), string(req.To), "rejected")
		return nil, fmt.Errorf("%w: reschedule_requested requires a suggested date and time", appointment.ErrInvalidTransition)
	}

	return s.apply(ctx, record, req)
}

func (s *Service) apply(ctx context.Context, record *appointment.Appointment, req Request) (*appointment.Appointment, error) {
	from := record.Status
	to := req.To
	patch := store.Patch{Status: &to}

	if to == appointment.StatusRescheduleRequested {
		patch.SuggestedTime = &appointment.SuggestedTime{
			Date:        req.SuggestedDate,
			Time:        req.SuggestedTime,
			SuggestedAt: s.now().UTC(),
		}
	}

	// Accepting a counter-offer adopts the suggested slot as the booked one.
	if from == appointment.StatusRescheduleRequested && to == appointment.StatusConfirmed && record.SuggestedTime != nil {
		patch.PreferredDate = &record.SuggestedTime.Date
		patch.PreferredTime = &record.SuggestedTime.Time
	}

	updated, err := s.store.Update(ctx, req.ChatRoomID, req.AppointmentID, patch)
	if err != nil {
		s.metrics.ObserveTransition(string(from), string(to), "error")
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(to), "ok")
	s.logger.Info("appointment transitioned",
		"chat_room_id", req.ChatRoomID, "appointment_id", req.AppointmentID,
		"from", from, "to", to)

	if s.emitter != nil {
		payload := events.AppointmentStatusChangedV1{
			EventID:       events.NewEventID(),
			BusinessID:    updated.BusinessID,
			ChatRoomID:    updated.ChatRoomID,
			AppointmentID: updated.ID,
			FromStatus:    string(from),
			ToStatus:      string(to),
			ChangedAt:     s.now().UTC(),
		}
		if suggestion := updated.CurrentSuggestion(); suggestion != nil {
			payload.SuggestedDate = suggestion.Date
			payload.SuggestedTime = suggestion.Time
		}
		s.emitter.Emit(events.TypeAppointmentStatusChangedV1, payload)
	}
	return updated, nil
}

func (s *Service) newSuggestion(record *appointment.Appointment, req Request) bool {
	if req.SuggestedDate == "" || req.SuggestedTime == "" {
		return false
	}
	current := record.CurrentSuggestion()
	if current == nil {
		return true
	}
	return current.Date != req.SuggestedDate || current.Time != req.SuggestedTime
}
