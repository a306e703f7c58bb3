package notify

import (
	"context"
	"fmt"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/chat"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/observability/metrics"
	"github.com/bookline-ai/bookline/internal/profile"
	"github.com/bookline-ai/bookline/pkg/logging"
)

// ProfileStore retrieves business profiles for notification preferences.
type ProfileStore interface {
	GetBusinessProfile(ctx context.Context, businessID string) (*profile.Profile, error)
}

// Service fans appointment lifecycle events out to the chat room, email,
// and SMS, honoring each business's notification preferences. It runs off
// the event dispatcher, so nothing here can block or fail a booking.
type Service struct {
	transport chat.Transport
	email     EmailSender
	sms       SMSSender
	profiles  ProfileStore
	logger    *logging.Logger
	metrics   *metrics.EngineMetrics
}

// NewService creates a notification service. Any of transport, email and
// sms may be nil; that channel is skipped.
func NewService(transport chat.Transport, email EmailSender, sms SMSSender, profiles ProfileStore, logger *logging.Logger, engineMetrics *metrics.EngineMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		transport: transport,
		email:     email,
		sms:       sms,
		profiles:  profiles,
		logger:    logger,
		metrics:   engineMetrics,
	}
}

// Handle implements the event dispatcher's Handler interface.
func (s *Service) Handle(ctx context.Context, eventType string, payload any) error {
	switch eventType {
	case events.TypeAppointmentRequestedV1:
		evt, ok := payload.(events.AppointmentRequestedV1)
		if !ok {
			return fmt.Errorf("notify: unexpected payload for %s", eventType)
		}
		return s.notifyRequested(ctx, evt)
	case events.TypeAppointmentStatusChangedV1:
		evt, ok := payload.(events.AppointmentStatusChangedV1)
		if !ok {
			return fmt.Errorf("notify: unexpected payload for %s", eventType)
		}
		return s.notifyStatusChanged(ctx, evt)
	}
	return nil
}

// notifyRequested alerts the business about a fresh request: email and
// SMS per preferences.
func (s *Service) notifyRequested(ctx context.Context, evt events.AppointmentRequestedV1) error {
	if s.profiles == nil {
		s.logger.Debug("notify: profile store not configured, skipping")
		return nil
	}

	prof, err := s.profiles.GetBusinessProfile(ctx, evt.BusinessID)
	if err != nil {
		s.logger.Error("notify: failed to load business profile", "error", err, "business_id", evt.BusinessID)
		return fmt.Errorf("notify: load profile: %w", err)
	}

	var errs []error

	if prof.NotifyEmail && s.email != nil && len(prof.EmailRecipients) > 0 {
		subject := fmt.Sprintf("New appointment request - %s", evt.CustomerName)
		body := fmt.Sprintf(`%s requested %s on %s at %s.

Customer: %s
Phone: %s

Confirm or suggest another time from your dashboard.

— %s`, evt.CustomerName, evt.Service, evt.PreferredDate, evt.PreferredTime,
			evt.CustomerName, evt.CustomerPhone, prof.Name)

		for _, recipient := range prof.EmailRecipients {
			msg := EmailMessage{To: recipient, Subject: subject, Body: body}
			if err := s.email.Send(ctx, msg); err != nil {
				s.metrics.ObserveNotify("email", "failed")
				s.logger.Error("notify: failed to send email", "error", err, "to", recipient)
				errs = append(errs, err)
			} else {
				s.metrics.ObserveNotify("email", "sent")
			}
		}
	}

	if prof.NotifySMS && s.sms != nil && prof.SMSNumber != "" {
		body := fmt.Sprintf("New request: %s, %s %s, %s (%s)",
			evt.Service, evt.PreferredDate, evt.PreferredTime, evt.CustomerName, evt.CustomerPhone)
		if err := s.sms.SendSMS(ctx, prof.SMSNumber, body); err != nil {
			s.metrics.ObserveNotify("sms", "failed")
			s.logger.Error("notify: failed to send SMS", "error", err, "to", prof.SMSNumber)
			errs = append(errs, err)
		} else {
			s.metrics.ObserveNotify("sms", "sent")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

// notifyStatusChanged posts a notice into the chat room so the customer
// sees the business's decision in the conversation itself.
func (s *Service) notifyStatusChanged(ctx context.Context, evt events.AppointmentStatusChangedV1) error {
	if s.transport == nil {
		return nil
	}

	notice := statusNotice(evt)
	if notice == "" {
		return nil
	}

	if err := s.transport.PostMessage(ctx, evt.ChatRoomID, chat.RoleSystem, notice); err != nil {
		s.metrics.ObserveNotify("chat", "failed")
		s.logger.Error("notify: failed to post chat notice", "error", err, "chat_room_id", evt.ChatRoomID)
		return fmt.Errorf("notify: post chat notice: %w", err)
	}
	s.metrics.ObserveNotify("chat", "sent")
	return nil
}

func statusNotice(evt events.AppointmentStatusChangedV1) string {
	switch appointment.Status(evt.ToStatus) {
	case appointment.StatusConfirmed:
		return "Your appointment is confirmed. See you then!"
	case appointment.StatusCanceled:
		return "Your appointment has been canceled. Message us if you'd like to rebook."
	case appointment.StatusRescheduleRequested:
		if evt.SuggestedDate != "" && evt.SuggestedTime != "" {
			return fmt.Sprintf("That slot doesn't work for the business. They suggest %s at %s instead — reply to accept or propose another time.",
				evt.SuggestedDate, evt.SuggestedTime)
		}
		return "The business would like to reschedule. Reply to work out a new time."
	case appointment.StatusCompleted:
		return "Thanks for coming in! Your appointment is complete."
	case appointment.StatusRequested:
		return "Your appointment request is back with the business for review."
	}
	return ""
}
