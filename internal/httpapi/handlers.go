package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/chat"
	"github.com/bookline-ai/bookline/internal/engine"
	"github.com/bookline-ai/bookline/internal/store"
	"github.com/bookline-ai/bookline/internal/transition"
	"github.com/bookline-ai/bookline/pkg/logging"
)

// transcriptLimit bounds how much history a turn feeds back into extraction.
const transcriptLimit = 10

// ChatLog persists conversation messages and replays recent history.
type ChatLog interface {
	AppendMessage(ctx context.Context, msg chat.Message) error
	RecentMessages(ctx context.Context, chatRoomID string, limit int) ([]chat.Message, error)
}

// AppointmentReader serves read endpoints straight from the store.
type AppointmentReader interface {
	FindByID(ctx context.Context, chatRoomID, appointmentID string) (*appointment.Appointment, error)
	ListByChatRoom(ctx context.Context, chatRoomID string) ([]appointment.Appointment, error)
	ListByBusinessDate(ctx context.Context, businessID, date string) ([]appointment.Appointment, error)
}

// Handler handles HTTP requests for conversation turns and appointments.
type Handler struct {
	engine      *engine.Engine
	transitions *transition.Service
	store       AppointmentReader
	chatLog     ChatLog
	logger      *logging.Logger
}

// NewHandler creates the API handler. chatLog may be nil; turns then run
// without persisted history.
func NewHandler(eng *engine.Engine, transitions *transition.Service, reader AppointmentReader, chatLog ChatLog, logger *logging.Logger) *Handler {
	if eng == nil {
		panic("httpapi: engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:      eng,
		transitions: transitions,
		store:       reader,
		chatLog:     chatLog,
		logger:      logger,
	}
}

// TurnRequest is the body for POST /chat/{chatRoomID}/turns.
type TurnRequest struct {
	Message string            `json:"message"`
	Draft   appointment.Draft `json:"draft"`
}

// TurnResponse echoes the advanced draft and the assistant reply.
type TurnResponse struct {
	Draft          appointment.Draft `json:"draft"`
	Reply          string            `json:"reply"`
	AvailableSlots []string          `json:"availableSlots,omitempty"`
}

// ProcessTurn handles POST /chat/{chatRoomID}/turns.
func (h *Handler) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	chatRoomID := chi.URLParam(r, "chatRoomID")
	businessID, ok := BusinessIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing business context", http.StatusBadRequest)
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode turn request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	recent := h.recentTurns(r.Context(), chatRoomID)
	h.logMessage(r.Context(), chatRoomID, chat.RoleUser, req.Message)

	result, err := h.engine.ProcessTurn(r.Context(), engine.TurnInput{
		BusinessID: businessID,
		ChatRoomID: chatRoomID,
		Message:    req.Message,
		Draft:      req.Draft,
		Recent:     recent,
	})
	if err != nil {
		h.logger.Error("turn processing failed", "error", err, "chat_room_id", chatRoomID)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	h.logMessage(r.Context(), chatRoomID, chat.RoleAssistant, result.Reply)

	writeJSON(w, http.StatusOK, TurnResponse{
		Draft:          result.Draft,
		Reply:          result.Reply,
		AvailableSlots: result.AvailableSlots,
	})
}

// ConfirmRequest is the body for POST /chat/{chatRoomID}/confirm.
type ConfirmRequest struct {
	Draft appointment.Draft `json:"draft"`
}

// ConfirmDraft handles POST /chat/{chatRoomID}/confirm.
func (h *Handler) ConfirmDraft(w http.ResponseWriter, r *http.Request) {
	chatRoomID := chi.URLParam(r, "chatRoomID")
	businessID, ok := BusinessIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing business context", http.StatusBadRequest)
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode confirm request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.ConfirmDraft(r.Context(), businessID, chatRoomID, req.Draft)
	if err != nil {
		h.writeDomainError(w, err, "failed to confirm draft", chatRoomID)
		return
	}

	h.logger.Info("appointment requested", "appointment_id", appt.ID, "chat_room_id", chatRoomID)
	writeJSON(w, http.StatusCreated, appt)
}

// TransitionRequest is the body for status changes.
type TransitionRequest struct {
	To            string `json:"to"`
	SuggestedDate string `json:"suggestedDate,omitempty"`
	SuggestedTime string `json:"suggestedTime,omitempty"`
}

// TransitionStatus handles PUT /business/chat/{chatRoomID}/appointments/{appointmentID}/status.
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	if h.transitions == nil {
		http.Error(w, "transitions not configured", http.StatusNotImplemented)
		return
	}
	chatRoomID := chi.URLParam(r, "chatRoomID")
	appointmentID := chi.URLParam(r, "appointmentID")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode transition request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.transitions.Apply(r.Context(), transition.Request{
		ChatRoomID:    chatRoomID,
		AppointmentID: appointmentID,
		To:            appointment.Status(req.To),
		SuggestedDate: req.SuggestedDate,
		SuggestedTime: req.SuggestedTime,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to transition appointment", chatRoomID)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

// GetAppointment handles GET /chat/{chatRoomID}/appointments/{appointmentID}.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "store not configured", http.StatusNotImplemented)
		return
	}
	chatRoomID := chi.URLParam(r, "chatRoomID")
	appointmentID := chi.URLParam(r, "appointmentID")

	appt, err := h.store.FindByID(r.Context(), chatRoomID, appointmentID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment", chatRoomID)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListAppointmentsResponse is the response for appointment listings.
type ListAppointmentsResponse struct {
	Appointments []appointment.Appointment `json:"appointments"`
	Count        int                       `json:"count"`
}

// ListChatAppointments handles GET /chat/{chatRoomID}/appointments.
func (h *Handler) ListChatAppointments(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "store not configured", http.StatusNotImplemented)
		return
	}
	chatRoomID := chi.URLParam(r, "chatRoomID")

	appts, err := h.store.ListByChatRoom(r.Context(), chatRoomID)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "chat_room_id", chatRoomID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListAppointmentsResponse{Appointments: appts, Count: len(appts)})
}

// ListBusinessAppointments handles GET /business/appointments?date=YYYY-MM-DD.
func (h *Handler) ListBusinessAppointments(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "store not configured", http.StatusNotImplemented)
		return
	}
	businessID, ok := BusinessIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing business context", http.StatusUnauthorized)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "missing date query parameter", http.StatusBadRequest)
		return
	}

	appts, err := h.store.ListByBusinessDate(r.Context(), businessID, date)
	if err != nil {
		h.logger.Error("failed to list business appointments", "error", err, "business_id", businessID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListAppointmentsResponse{Appointments: appts, Count: len(appts)})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) recentTurns(ctx context.Context, chatRoomID string) []appointment.Turn {
	if h.chatLog == nil {
		return nil
	}
	msgs, err := h.chatLog.RecentMessages(ctx, chatRoomID, transcriptLimit)
	if err != nil {
		h.logger.Warn("failed to load chat history", "error", err, "chat_room_id", chatRoomID)
		return nil
	}
	turns := make([]appointment.Turn, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == chat.RoleSystem {
			continue
		}
		turns = append(turns, appointment.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

func (h *Handler) logMessage(ctx context.Context, chatRoomID, role, content string) {
	if h.chatLog == nil || content == "" {
		return
	}
	if err := h.chatLog.AppendMessage(ctx, chat.Message{ChatRoomID: chatRoomID, Role: role, Content: content}); err != nil {
		h.logger.Warn("failed to persist chat message", "error", err, "chat_room_id", chatRoomID)
	}
}

// writeDomainError maps domain errors onto HTTP statuses. Persistence
// uncertainty gets its own body so callers know the write may have landed.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, logMsg, chatRoomID string) {
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "appointment not found"})
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, engine.ErrDraftIncomplete):
		writeJSON(w, http.StatusConflict, errorBody{Error: "draft_incomplete", Message: "draft is not ready for confirmation"})
	case errors.Is(err, store.ErrPersistenceUncertain):
		h.logger.Error(logMsg, "error", err, "chat_room_id", chatRoomID)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:   "persistence_uncertain",
			Message: "the write could not be verified; it may or may not have been applied",
		})
	default:
		h.logger.Error(logMsg, "error", err, "chat_room_id", chatRoomID)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: logMsg})
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
