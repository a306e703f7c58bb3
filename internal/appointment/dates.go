package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used throughout drafts and
// appointments.
const DateLayout = "2006-01-02"

// maxYearDrift bounds how far in the future a stated year may be before it
// is treated as an extraction artifact.
const maxYearDrift = 10

var relativeDateTerms = []struct {
	re   *regexp.Regexp
	days int
}{
	// Longest phrases first so "day after tomorrow" never matches as "tomorrow".
	{regexp.MustCompile(`(?i)\bday\s+after\s+(?:tomorrow|tommorrow|tommorow|tomorow)\b`), 2},
	{regexp.MustCompile(`(?i)\b(?:tomorrow|tommorrow|tommorow|tomorow|tmrw|tmr)\b`), 1},
	{regexp.MustCompile(`(?i)\btoday\b`), 0},
	{regexp.MustCompile(`(?i)\btonight\b`), 0},
}

// fillerWords are tokens that may surround a bare relative-date phrase
// without changing its meaning ("book for tomorrow please").
var fillerWords = map[string]bool{
	"book": true, "booking": true, "appointment": true, "appt": true,
	"for": true, "me": true, "please": true, "pls": true, "it": true,
	"a": true, "an": true, "the": true, "on": true, "at": true, "in": true,
	"yes": true, "ok": true, "okay": true, "sure": true, "then": true,
	"do": true, "lets": true, "let's": true, "that": true, "works": true,
	"schedule": true, "set": true, "up": true,
}

var nonLetterRE = regexp.MustCompile(`[^\p{L}'\s]`)

// ResolveRelativeDate resolves "today"/"tomorrow"/"day after tomorrow"
// (including common misspellings of tomorrow) against the current date.
func ResolveRelativeDate(message string, now time.Time) (string, bool) {
	for _, term := range relativeDateTerms {
		if term.re.MatchString(message) {
			return now.AddDate(0, 0, term.days).Format(DateLayout), true
		}
	}
	return "", false
}

// BareRelativeDate reports whether the message is nothing but a relative
// date phrase plus filler ("tomorrow please", "book it for today"). Such a
// turn can skip extraction entirely when the service is already known.
func BareRelativeDate(message string, now time.Time) (string, bool) {
	for _, term := range relativeDateTerms {
		loc := term.re.FindStringIndex(message)
		if loc == nil {
			continue
		}
		rest := message[:loc[0]] + " " + message[loc[1]:]
		rest = strings.ToLower(nonLetterRE.ReplaceAllString(rest, " "))
		for _, word := range strings.Fields(rest) {
			if !fillerWords[word] {
				return "", false
			}
		}
		return now.AddDate(0, 0, term.days).Format(DateLayout), true
	}
	return "", false
}

// parseDateParts splits an ISO-style date into numeric components without
// range validation; a month of 13 must still parse so the regression guard
// can inspect it.
func parseDateParts(date string) (year, month, day int, ok bool) {
	parts := strings.Split(strings.TrimSpace(date), "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// normalizeYear rewrites a stale or runaway year to the current one.
// Extraction models default to training-era years; a year earlier than the
// current one, or more than ten years out, is never what the customer meant.
func normalizeYear(date string, now time.Time) string {
	year, month, day, ok := parseDateParts(date)
	if !ok {
		return date
	}
	if year >= now.Year() && year <= now.Year()+maxYearDrift {
		return date
	}
	return fmt.Sprintf("%04d-%02d-%02d", now.Year(), month, day)
}

// regressiveDateChange reports whether a candidate date looks like a
// single-field extraction misread of the prior date rather than an
// intentional change. This is a heuristic guard, not a proof; it can
// falsely reject a legitimate far-out date change with a matching day.
func regressiveDateChange(prior, candidate string) bool {
	_, priorMonth, priorDay, priorOK := parseDateParts(prior)
	_, candMonth, candDay, candOK := parseDateParts(candidate)
	if !priorOK || !candOK {
		return false
	}
	if candMonth > 12 {
		return true
	}
	if priorMonth == candDay && priorDay == candMonth {
		return true
	}
	monthJump := candMonth - priorMonth
	if monthJump < 0 {
		monthJump = -monthJump
	}
	return monthJump > 2 && candDay == priorDay
}

// reconcileDate runs a candidate date through year normalization and the
// anti-regression guard against the prior date. It returns the date the
// draft should carry and whether the candidate was rejected.
func reconcileDate(prior, candidate string, now time.Time) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return prior, false
	}
	candidate = normalizeYear(candidate, now)
	if prior != "" && prior != candidate && regressiveDateChange(prior, candidate) {
		return prior, true
	}
	return candidate, false
}
