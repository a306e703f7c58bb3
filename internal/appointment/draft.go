package appointment

import "strings"

// Field identifies a slot the conversation is trying to fill.
type Field string

const (
	FieldService       Field = "service"
	FieldDate          Field = "date"
	FieldTime          Field = "time"
	FieldCustomerName  Field = "customerName"
	FieldCustomerPhone Field = "customerPhone"
	FieldAddress       Field = "address"
	FieldNotes         Field = "notes"

	// StepReview is the NextStep value once every required field is filled.
	StepReview Field = "review"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ServiceLocation values for drafts that distinguish on-site work.
const (
	LocationHome     = "home"
	LocationBusiness = "business"
)

// Draft is the in-progress appointment collected across a conversation.
// It lives only inside the conversation document until the customer
// confirms at review.
type Draft struct {
	Service       string `json:"service,omitempty"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	Notes         string `json:"notes,omitempty"`

	Address         string `json:"address,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	ZipCode         string `json:"zipCode,omitempty"`
	IsHomeService   bool   `json:"isHomeService,omitempty"`
	ServiceLocation string `json:"serviceLocation,omitempty"`

	CollectedFields      map[Field]bool `json:"collectedFields,omitempty"`
	ValidationErrors     []string       `json:"validationErrors,omitempty"`
	NextStep             Field          `json:"nextStep"`
	IsAppointmentRequest bool           `json:"isAppointmentRequest"`
}

// Extracted is the partial draft reported by the language-extraction
// service for a single message. Empty strings mean "not mentioned".
type Extracted struct {
	Service       string `json:"service"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	Notes         string `json:"notes"`

	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	ZipCode         string `json:"zipCode"`
	ServiceLocation string `json:"serviceLocation"`

	CollectedFields      []Field `json:"collectedFields"`
	IsAppointmentRequest bool    `json:"isAppointmentRequest"`
}

// NewDraft returns an empty draft ready for its first merge.
func NewDraft() Draft {
	d := Draft{CollectedFields: make(map[Field]bool)}
	recomputeNextStep(&d)
	return d
}

// Collected reports whether a field has been gathered, including fields
// explicitly collected as empty (e.g. "no notes").
func (d *Draft) Collected(f Field) bool {
	return d.CollectedFields[f]
}

func (d *Draft) markCollected(f Field) {
	if d.CollectedFields == nil {
		d.CollectedFields = make(map[Field]bool)
	}
	d.CollectedFields[f] = true
}

// fieldValue returns the draft's current value for a slot field.
func (d *Draft) fieldValue(f Field) string {
	switch f {
	case FieldService:
		return d.Service
	case FieldDate:
		return d.Date
	case FieldTime:
		return d.Time
	case FieldCustomerName:
		return d.CustomerName
	case FieldCustomerPhone:
		return d.CustomerPhone
	case FieldAddress:
		return d.Address
	case FieldNotes:
		return d.Notes
	}
	return ""
}

// requiredFields is the canonical asking order. Address only applies to
// home-service bookings.
func (d *Draft) requiredFields() []Field {
	fields := []Field{FieldService, FieldDate, FieldTime, FieldCustomerName, FieldCustomerPhone}
	if d.IsHomeService || d.ServiceLocation == LocationHome {
		fields = append(fields, FieldAddress)
	}
	return append(fields, FieldNotes)
}

// satisfied reports whether a field no longer needs to be asked for: it has
// a value, or it was explicitly collected as empty.
func (d *Draft) satisfied(f Field) bool {
	if strings.TrimSpace(d.fieldValue(f)) != "" {
		return true
	}
	return d.Collected(f)
}

// recomputeNextStep sets NextStep to the first unsatisfied field in the
// canonical order, or review when everything is filled. It always runs
// after field merges so a multi-field message still converges to exactly
// the next missing question.
func recomputeNextStep(d *Draft) {
	for _, f := range d.requiredFields() {
		if !d.satisfied(f) {
			d.NextStep = f
			return
		}
	}
	d.NextStep = StepReview
}

// rederiveCollected adds any field whose merged value is non-empty.
// Extraction output may omit bookkeeping, so collected state is re-derived
// defensively instead of trusted.
func rederiveCollected(d *Draft) {
	for _, f := range []Field{FieldService, FieldDate, FieldTime, FieldCustomerName, FieldCustomerPhone, FieldAddress, FieldNotes} {
		if strings.TrimSpace(d.fieldValue(f)) != "" {
			d.markCollected(f)
		}
	}
}
