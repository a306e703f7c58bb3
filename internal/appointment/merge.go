package appointment

import (
	"strings"
	"time"
)

// Merge combines a prior draft with newly extracted fields from one
// conversational turn. It is a pure function: the clock is passed in and
// nothing outside the returned draft is mutated.
//
// Scalar fields follow a single rule: the extracted value wins only when
// non-empty, otherwise the prior value is retained. Dates additionally run
// through relative-term resolution, year normalization, and an
// anti-regression guard. Notes have their own resolver. NextStep is always
// recomputed last so a message that fills several fields at once still
// converges to exactly the next missing question.
func Merge(prior Draft, extracted Extracted, rawMessage string, recent []Turn, now time.Time) Draft {
	out := prior
	out.CollectedFields = make(map[Field]bool, len(prior.CollectedFields)+4)
	for f, set := range prior.CollectedFields {
		if set {
			out.CollectedFields[f] = true
		}
	}
	out.ValidationErrors = append([]string(nil), prior.ValidationErrors...)

	mergeScalar(&out.Service, extracted.Service)

	candidate := extracted.Date
	if resolved, ok := ResolveRelativeDate(rawMessage, now); ok {
		candidate = resolved
	}
	date, rejected := reconcileDate(prior.Date, candidate, now)
	out.Date = date
	if rejected {
		out.ValidationErrors = append(out.ValidationErrors,
			"date change looked like a misread; keeping "+prior.Date)
	}

	mergeScalar(&out.Time, extracted.Time)
	mergeScalar(&out.CustomerName, extracted.CustomerName)
	mergeScalar(&out.CustomerPhone, extracted.CustomerPhone)
	mergeScalar(&out.Address, extracted.Address)
	mergeScalar(&out.City, extracted.City)
	mergeScalar(&out.State, extracted.State)
	mergeScalar(&out.ZipCode, extracted.ZipCode)

	if loc := strings.ToLower(strings.TrimSpace(extracted.ServiceLocation)); loc == LocationHome || loc == LocationBusiness {
		out.ServiceLocation = loc
		out.IsHomeService = loc == LocationHome
	}

	if value, collected, ok := resolveNotes(&prior, rawMessage, recent); ok {
		out.Notes = value
		if collected {
			out.markCollected(FieldNotes)
		}
	} else if notes := strings.TrimSpace(extracted.Notes); notes != "" && !isNoiseNote(notes) {
		out.Notes = notes
	}

	for _, f := range extracted.CollectedFields {
		out.markCollected(f)
	}
	rederiveCollected(&out)

	out.IsAppointmentRequest = prior.IsAppointmentRequest || extracted.IsAppointmentRequest
	recomputeNextStep(&out)
	return out
}

func mergeScalar(dst *string, candidate string) {
	if c := strings.TrimSpace(candidate); c != "" {
		*dst = c
	}
}
