package appointment

import "errors"

var (
	// ErrNotFound indicates the appointment does not exist in the chat room.
	ErrNotFound = errors.New("appointment: not found")

	// ErrInvalidTransition indicates an illegal state-machine edge or a
	// reschedule request without a proposed time.
	ErrInvalidTransition = errors.New("appointment: invalid status transition")
)
