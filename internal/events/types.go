package events

import "time"

const (
	TypeAppointmentRequestedV1     = "appointment.requested.v1"
	TypeAppointmentStatusChangedV1 = "appointment.status_changed.v1"
)

type AppointmentRequestedV1 struct {
	EventID       string    `json:"event_id"`
	BusinessID    string    `json:"business_id"`
	ChatRoomID    string    `json:"chat_room_id"`
	AppointmentID string    `json:"appointment_id"`
	Service       string    `json:"service"`
	PreferredDate string    `json:"preferred_date"`
	PreferredTime string    `json:"preferred_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

type AppointmentStatusChangedV1 struct {
	EventID       string    `json:"event_id"`
	BusinessID    string    `json:"business_id"`
	ChatRoomID    string    `json:"chat_room_id"`
	AppointmentID string    `json:"appointment_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	SuggestedDate string    `json:"suggested_date,omitempty"`
	SuggestedTime string    `json:"suggested_time,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}
