package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bookline-ai/bookline/internal/chat"
	"github.com/bookline-ai/bookline/internal/events"
	"github.com/bookline-ai/bookline/internal/profile"
)

// Mock implementations

type mockEmailSender struct {
	sent    []EmailMessage
	failOn  string // fail if To matches this
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	if m.failOn != "" && msg.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSMSSender struct {
	sent    []struct{ to, body string }
	callErr error
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

type mockTransport struct {
	posted  []struct{ room, role, content string }
	callErr error
}

func (m *mockTransport) PostMessage(ctx context.Context, chatRoomID, role, content string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.posted = append(m.posted, struct{ room, role, content string }{chatRoomID, role, content})
	return nil
}

type mockProfileStore struct {
	profiles map[string]*profile.Profile
	err      error
}

func (m *mockProfileStore) GetBusinessProfile(ctx context.Context, businessID string) (*profile.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if prof, ok := m.profiles[businessID]; ok {
		return prof, nil
	}
	return nil, profile.ErrNotFound
}

func notifyProfile() *profile.Profile {
	return &profile.Profile{
		BusinessID:      "biz-1",
		Name:            "Shoreline Cleaners",
		NotifyEmail:     true,
		EmailRecipients: []string{"owner@example.com", "front-desk@example.com"},
		NotifySMS:       true,
		SMSNumber:       "+15551230000",
	}
}

func requestedEvent() events.AppointmentRequestedV1 {
	return events.AppointmentRequestedV1{
		EventID:       "evt-1",
		BusinessID:    "biz-1",
		ChatRoomID:    "room-1",
		AppointmentID: "appt-1",
		Service:       "deep clean",
		PreferredDate: "2025-06-12",
		PreferredTime: "14:00",
		CustomerName:  "Dana",
		CustomerPhone: "+15559876543",
	}
}

func TestHandleRequestedSendsEmailAndSMS(t *testing.T) {
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	profiles := &mockProfileStore{profiles: map[string]*profile.Profile{"biz-1": notifyProfile()}}
	svc := NewService(nil, email, sms, profiles, nil, nil)

	err := svc.Handle(context.Background(), events.TypeAppointmentRequestedV1, requestedEvent())
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(email.sent) != 2 {
		t.Fatalf("expected email to both recipients, got %d", len(email.sent))
	}
	if email.sent[0].To != "owner@example.com" || email.sent[1].To != "front-desk@example.com" {
		t.Fatalf("unexpected recipients: %+v", email.sent)
	}
	if !strings.Contains(email.sent[0].Body, "deep clean") || !strings.Contains(email.sent[0].Body, "2025-06-12") {
		t.Fatalf("email body missing request details: %q", email.sent[0].Body)
	}
	if len(sms.sent) != 1 || sms.sent[0].to != "+15551230000" {
		t.Fatalf("expected one SMS to the business number, got %+v", sms.sent)
	}
	if !strings.Contains(sms.sent[0].body, "Dana") {
		t.Fatalf("SMS missing customer name: %q", sms.sent[0].body)
	}
}

func TestHandleRequestedHonorsPreferences(t *testing.T) {
	prof := notifyProfile()
	prof.NotifyEmail = false
	prof.NotifySMS = false
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	profiles := &mockProfileStore{profiles: map[string]*profile.Profile{"biz-1": prof}}
	svc := NewService(nil, email, sms, profiles, nil, nil)

	if err := svc.Handle(context.Background(), events.TypeAppointmentRequestedV1, requestedEvent()); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Fatalf("expected no deliveries when both channels disabled, got %d emails and %d SMS", len(email.sent), len(sms.sent))
	}
}

func TestHandleRequestedEmailFailureStillSendsSMS(t *testing.T) {
	email := &mockEmailSender{failOn: "owner@example.com"}
	sms := &mockSMSSender{}
	profiles := &mockProfileStore{profiles: map[string]*profile.Profile{"biz-1": notifyProfile()}}
	svc := NewService(nil, email, sms, profiles, nil, nil)

	err := svc.Handle(context.Background(), events.TypeAppointmentRequestedV1, requestedEvent())
	if err == nil {
		t.Fatal("expected aggregated error from failed email")
	}
	if len(email.sent) != 1 {
		t.Fatalf("second recipient should still get email, got %d sent", len(email.sent))
	}
	if len(sms.sent) != 1 {
		t.Fatalf("SMS should still go out after an email failure, got %d", len(sms.sent))
	}
}

func TestHandleRequestedProfileLookupFailure(t *testing.T) {
	email := &mockEmailSender{}
	profiles := &mockProfileStore{err: errors.New("dynamo down")}
	svc := NewService(nil, email, nil, profiles, nil, nil)

	err := svc.Handle(context.Background(), events.TypeAppointmentRequestedV1, requestedEvent())
	if err == nil {
		t.Fatal("expected error when profile lookup fails")
	}
	if len(email.sent) != 0 {
		t.Fatalf("no email should be sent without a profile, got %d", len(email.sent))
	}
}

func TestHandleStatusChangedPostsChatNotice(t *testing.T) {
	transport := &mockTransport{}
	svc := NewService(transport, nil, nil, nil, nil, nil)

	evt := events.AppointmentStatusChangedV1{
		EventID:       "evt-2",
		BusinessID:    "biz-1",
		ChatRoomID:    "room-1",
		AppointmentID: "appt-1",
		FromStatus:    "requested",
		ToStatus:      "confirmed",
	}
	if err := svc.Handle(context.Background(), events.TypeAppointmentStatusChangedV1, evt); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(transport.posted) != 1 {
		t.Fatalf("expected one chat notice, got %d", len(transport.posted))
	}
	got := transport.posted[0]
	if got.room != "room-1" || got.role != chat.RoleSystem {
		t.Fatalf("notice posted to wrong room/role: %+v", got)
	}
	if !strings.Contains(got.content, "confirmed") {
		t.Fatalf("confirmation notice missing status: %q", got.content)
	}
}

func TestHandleStatusChangedRescheduleIncludesSuggestion(t *testing.T) {
	transport := &mockTransport{}
	svc := NewService(transport, nil, nil, nil, nil, nil)

	evt := events.AppointmentStatusChangedV1{
		ChatRoomID:    "room-1",
		FromStatus:    "requested",
		ToStatus:      "reschedule_requested",
		SuggestedDate: "2025-06-13",
		SuggestedTime: "10:00",
	}
	if err := svc.Handle(context.Background(), events.TypeAppointmentStatusChangedV1, evt); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	content := transport.posted[0].content
	if !strings.Contains(content, "2025-06-13") || !strings.Contains(content, "10:00") {
		t.Fatalf("reschedule notice missing suggested slot: %q", content)
	}
}

func TestHandleStatusChangedTransportFailure(t *testing.T) {
	transport := &mockTransport{callErr: errors.New("db down")}
	svc := NewService(transport, nil, nil, nil, nil, nil)

	evt := events.AppointmentStatusChangedV1{ChatRoomID: "room-1", ToStatus: "canceled"}
	if err := svc.Handle(context.Background(), events.TypeAppointmentStatusChangedV1, evt); err == nil {
		t.Fatal("expected error when chat post fails")
	}
}

func TestHandleIgnoresUnknownEventType(t *testing.T) {
	email := &mockEmailSender{}
	svc := NewService(nil, email, nil, nil, nil, nil)

	if err := svc.Handle(context.Background(), "appointment.unknown.v1", struct{}{}); err != nil {
		t.Fatalf("unknown event types should be ignored, got %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("nothing should be sent for unknown events, got %d", len(email.sent))
	}
}

func TestHandleRejectsWrongPayloadType(t *testing.T) {
	svc := NewService(nil, &mockEmailSender{}, nil, nil, nil, nil)

	err := svc.Handle(context.Background(), events.TypeAppointmentRequestedV1, "not an event")
	if err == nil {
		t.Fatal("expected error for mismatched payload type")
	}
}
