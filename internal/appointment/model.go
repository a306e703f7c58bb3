package appointment

import "time"

// Status is the lifecycle state of a persisted appointment.
type Status string

const (
	StatusRequested           Status = "requested"
	StatusConfirmed           Status = "confirmed"
	StatusCanceled            Status = "canceled"
	StatusRescheduleRequested Status = "reschedule_requested"
	StatusCompleted           Status = "completed"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCanceled, StatusRescheduleRequested, StatusCompleted:
		return true
	}
	return false
}

// SuggestedTime is a business-proposed alternative slot. It is only
// meaningful while the appointment status is reschedule_requested; a stale
// suggestion may linger after the negotiation resolves.
type SuggestedTime struct {
	Date        string    `dynamodbav:"date" json:"date"`
	Time        string    `dynamodbav:"time" json:"time"`
	SuggestedAt time.Time `dynamodbav:"suggestedAt" json:"suggestedAt"`
}

// SameSlot reports whether two suggestions name the same date and time,
// ignoring when they were proposed.
func (s *SuggestedTime) SameSlot(other *SuggestedTime) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Date == other.Date && s.Time == other.Time
}

// Appointment is the persisted booking document, a child of its chat room.
// Appointments are never physically deleted; cancellation is a status.
type Appointment struct {
	ChatRoomID    string         `dynamodbav:"chatRoomId" json:"chatRoomId"`
	ID            string         `dynamodbav:"appointmentId" json:"appointmentId"`
	BusinessID    string         `dynamodbav:"businessId" json:"businessId"`
	Service       string         `dynamodbav:"service" json:"service"`
	PreferredDate string         `dynamodbav:"preferredDate" json:"preferredDate"`
	PreferredTime string         `dynamodbav:"preferredTime" json:"preferredTime"`
	CustomerName  string         `dynamodbav:"customerName" json:"customerName"`
	CustomerPhone string         `dynamodbav:"customerPhone" json:"customerPhone"`
	Notes         string         `dynamodbav:"notes" json:"notes"`
	Status        Status         `dynamodbav:"status" json:"status"`
	SuggestedTime *SuggestedTime `dynamodbav:"suggestedTime,omitempty" json:"suggestedTime,omitempty"`
	CreatedAt     time.Time      `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `dynamodbav:"updatedAt" json:"updatedAt"`
}

// CurrentSuggestion returns the suggested time only while the reschedule
// negotiation is open. Readers must not treat a lingering suggestion as
// current once the status has moved on.
func (a *Appointment) CurrentSuggestion() *SuggestedTime {
	if a == nil || a.Status != StatusRescheduleRequested {
		return nil
	}
	return a.SuggestedTime
}
