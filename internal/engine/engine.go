package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/availability"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/pkg/logging"
)

var engineTracer = otel.Tracer("bookline.internal.engine")

// DefaultExtractionTimeout bounds the LLM call inside a turn.
const DefaultExtractionTimeout = 12 * time.Second

// ErrDraftIncomplete means a confirmation was attempted before the draft
// reached review.
var ErrDraftIncomplete = errors.New("engine: draft is not ready to confirm")

// Extractor reports the appointment details present in one message.
type Extractor interface {
	Extract(ctx context.Context, draft appointment.Draft, message string, recent []appointment.Turn) (appointment.Extracted, error)
}

// AvailabilityChecker answers slot questions for reply enrichment.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, businessID, date, timeOfDay string) (bool, error)
	ListAvailableSlots(ctx context.Context, businessID, date string, interval time.Duration) ([]string, error)
}

// AppointmentCreator persists a confirmed draft.
type AppointmentCreator interface {
	Create(ctx context.Context, appt *appointment.Appointment) (*appointment.Appointment, error)
}

// Emitter publishes lifecycle events without blocking the caller.
type Emitter interface {
	Emit(eventType string, payload any)
}

// TurnInput is everything one conversation turn needs. The engine holds no
// per-conversation state; the caller round-trips the draft.
type TurnInput struct {
	BusinessID string
	ChatRoomID string
	Message    string
	Draft      appointment.Draft
	Recent     []appointment.Turn
}

// TurnResult is the engine's answer for one turn.
type TurnResult struct {
	Draft          appointment.Draft
	Reply          string
	AvailableSlots []string
	UsedFallback   bool
}

// Engine advances an appointment draft one customer message at a time:
// extract, merge, enrich with availability, ask the next question.
type Engine struct {
	extractor    Extractor
	availability AvailabilityChecker
	store        AppointmentCreator
	emitter      Emitter
	logger       *logging.Logger
	metrics      *metrics.EngineMetrics

	extractionTimeout time.Duration
	now               func() time.Time
}

// New constructs an engine. availability, emitter and engineMetrics may be
// nil; store may be nil when the caller never confirms drafts.
func New(extractor Extractor, checker AvailabilityChecker, store AppointmentCreator, emitter Emitter, logger *logging.Logger, engineMetrics *metrics.EngineMetrics) *Engine {
	if extractor == nil {
		panic("engine: extractor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		extractor:         extractor,
		availability:      checker,
		store:             store,
		emitter:           emitter,
		logger:            logger,
		metrics:           engineMetrics,
		extractionTimeout: DefaultExtractionTimeout,
		now:               time.Now,
	}
}

// WithExtractionTimeout overrides the per-turn LLM budget.
func (e *Engine) WithExtractionTimeout(timeout time.Duration) *Engine {
	if timeout > 0 {
		e.extractionTimeout = timeout
	}
	return e
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// ProcessTurn advances the draft with one customer message. Extraction
// failures degrade to a merge of whatever the engine can derive locally; the
// customer always gets a usable reply, never an extraction error.
func (e *Engine) ProcessTurn(ctx context.Context, input TurnInput) (TurnResult, error) {
	ctx, span := engineTracer.Start(ctx, "engine.process_turn")
	defer span.End()
	span.SetAttributes(attribute.String("bookline.chat_room_id", input.ChatRoomID))

	now := e.now()
	message := strings.TrimSpace(input.Message)
	if message == "" {
		draft := input.Draft
		return TurnResult{Draft: draft, Reply: e.prompt(ctx, input.BusinessID, &draft, nil)}, nil
	}

	extracted, usedFallback := e.extract(ctx, input, message, now)

	merged := appointment.Merge(input.Draft, extracted, message, input.Recent, now)

	slots := e.enrich(ctx, input.BusinessID, &merged)

	reply := e.prompt(ctx, input.BusinessID, &merged, slots)
	if usedFallback {
		reply = "Sorry, I didn't quite catch that. " + reply
		e.metrics.ObserveTurn("fallback")
	} else if merged.NextStep == appointment.StepReview {
		e.metrics.ObserveTurn("review")
	} else {
		e.metrics.ObserveTurn("reply")
	}

	return TurnResult{
		Draft:          merged,
		Reply:          reply,
		AvailableSlots: slots,
		UsedFallback:   usedFallback,
	}, nil
}

// extract runs the LLM inside its own deadline. A bare relative date like
// "tomorrow" is resolved locally without a model call, and any extraction
// failure degrades to the same local resolution.
func (e *Engine) extract(ctx context.Context, input TurnInput, message string, now time.Time) (appointment.Extracted, bool) {
	if date, ok := appointment.BareRelativeDate(message, now); ok {
		return appointment.Extracted{Date: date, CollectedFields: []appointment.Field{appointment.FieldDate}}, false
	}

	extractCtx, cancel := context.WithTimeout(ctx, e.extractionTimeout)
	defer cancel()

	extracted, err := e.extractor.Extract(extractCtx, input.Draft, message, input.Recent)
	if err == nil {
		return extracted, false
	}
	e.logger.Warn("extraction failed, merging local fallback",
		"chat_room_id", input.ChatRoomID, "error", err)

	fallback := appointment.Extracted{}
	if date, ok := appointment.ResolveRelativeDate(message, now); ok {
		fallback.Date = date
	}
	return fallback, true
}

// enrich consults availability when the conversation is at the date or time
// step, or holds a full slot that needs a conflict check. Availability
// problems never block the turn.
func (e *Engine) enrich(ctx context.Context, businessID string, draft *appointment.Draft) []string {
	if e.availability == nil || draft.Date == "" {
		return nil
	}

	if draft.Time != "" {
		available, err := e.availability.IsAvailable(ctx, businessID, draft.Date, draft.Time)
		if err != nil {
			if !errors.Is(err, availability.ErrUnknown) {
				e.logger.Warn("availability check failed", "date", draft.Date, "error", err)
			}
			return nil
		}
		if !available {
			// Reopen the time question and offer alternatives.
			draft.Time = ""
			delete(draft.CollectedFields, appointment.FieldTime)
			draft.NextStep = appointment.FieldTime
			return e.listSlots(ctx, businessID, draft.Date)
		}
		return nil
	}

	if draft.NextStep == appointment.FieldTime {
		return e.listSlots(ctx, businessID, draft.Date)
	}
	return nil
}

func (e *Engine) listSlots(ctx context.Context, businessID, date string) []string {
	slots, err := e.availability.ListAvailableSlots(ctx, businessID, date, 0)
	if err != nil {
		if !errors.Is(err, availability.ErrUnknown) {
			e.logger.Warn("slot listing failed", "date", date, "error", err)
		}
		return nil
	}
	return slots
}

// ConfirmDraft persists a reviewed draft as a requested appointment and
// announces it. The draft must have reached review.
func (e *Engine) ConfirmDraft(ctx context.Context, businessID, chatRoomID string, draft appointment.Draft) (*appointment.Appointment, error) {
	ctx, span := engineTracer.Start(ctx, "engine.confirm_draft")
	defer span.End()

	if draft.NextStep != appointment.StepReview {
		return nil, fmt.Errorf("%w: next step is %s", ErrDraftIncomplete, draft.NextStep)
	}
	if e.store == nil {
		return nil, errors.New("engine: no appointment store configured")
	}

	notes := draft.Notes
	if draft.IsHomeService || draft.ServiceLocation == appointment.LocationHome {
		if address := formatAddress(draft); address != "" {
			if notes != "" {
				notes = address + "; " + notes
			} else {
				notes = address
			}
		}
	}

	created, err := e.store.Create(ctx, &appointment.Appointment{
		ChatRoomID:    chatRoomID,
		BusinessID:    businessID,
		Service:       draft.Service,
		PreferredDate: draft.Date,
		PreferredTime: draft.Time,
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		Notes:         notes,
		Status:        appointment.StatusRequested,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Info("appointment requested",
		"chat_room_id", chatRoomID, "appointment_id", created.ID, "service", created.Service)

	if e.emitter != nil {
		e.emitter.Emit(events.TypeAppointmentRequestedV1, events.AppointmentRequestedV1{
			EventID:       events.NewEventID(),
			BusinessID:    created.BusinessID,
			ChatRoomID:    created.ChatRoomID,
			AppointmentID: created.ID,
			Service:       created.Service,
			PreferredDate: created.PreferredDate,
			PreferredTime: created.PreferredTime,
			CustomerName:  created.CustomerName,
			CustomerPhone: created.CustomerPhone,
			RequestedAt:   e.now().UTC(),
		})
	}
	return created, nil
}

func formatAddress(draft appointment.Draft) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{draft.Address, draft.City, draft.State, draft.ZipCode} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Address: " + strings.Join(parts, ", ")
}
