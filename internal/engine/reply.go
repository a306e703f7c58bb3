package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bookline-ai/bookline/internal/appointment"
)

// prompt composes the assistant reply for the draft's current step: a short
// echo of what is already gathered, then exactly one question.
func (e *Engine) prompt(_ context.Context, _ string, draft *appointment.Draft, slots []string) string {
	question := e.question(draft, slots)
	if echo := summarize(draft); echo != "" && draft.NextStep != appointment.StepReview {
		return echo + " " + question
	}
	return question
}

func (e *Engine) question(draft *appointment.Draft, slots []string) string {
	switch draft.NextStep {
	case appointment.FieldService:
		return "What service would you like to book?"
	case appointment.FieldDate:
		return "What day works for you?"
	case appointment.FieldTime:
		if len(slots) > 0 {
			return fmt.Sprintf("What time works for you? We have %s open.", joinSlots(slots))
		}
		return "What time works for you?"
	case appointment.FieldCustomerName:
		return "Can I get your name?"
	case appointment.FieldCustomerPhone:
		return "What's the best phone number to reach you?"
	case appointment.FieldAddress:
		return "Since this is at your place, what's the service address?"
	case appointment.FieldNotes:
		return "Anything else we should know before booking? If not, just say so."
	case appointment.StepReview:
		return reviewSummary(draft)
	}
	return "How can I help you book an appointment?"
}

func summarize(draft *appointment.Draft) string {
	parts := make([]string, 0, 3)
	if draft.Service != "" {
		parts = append(parts, draft.Service)
	}
	if draft.Date != "" {
		parts = append(parts, "on "+draft.Date)
	}
	if draft.Time != "" {
		parts = append(parts, "at "+draft.Time)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Got it: " + strings.Join(parts, " ") + "."
}

func reviewSummary(draft *appointment.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I have: %s on %s at %s for %s",
		draft.Service, draft.Date, draft.Time, draft.CustomerName)
	if draft.CustomerPhone != "" {
		fmt.Fprintf(&b, " (%s)", draft.CustomerPhone)
	}
	if draft.Notes != "" {
		fmt.Fprintf(&b, ". Notes: %s", draft.Notes)
	}
	b.WriteString(". Shall I send this request to the business?")
	return b.String()
}

func joinSlots(slots []string) string {
	const maxShown = 6
	if len(slots) > maxShown {
		slots = slots[:maxShown]
	}
	return strings.Join(slots, ", ")
}
