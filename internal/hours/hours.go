package hours

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseable indicates the business schedule could not be interpreted.
// Callers treat this as "cannot confirm availability", never as "closed".
var ErrUnparseable = errors.New("hours: unparseable business schedule")

// DayHours is the normalized open/close window for one weekday. Open and
// Close are zero-padded 24-hour "HH:MM" strings; either may be empty when
// the business marked the day open without stating hours.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen bool   `json:"isOpen"`
}

// Index maps weekdays to their hours. Built once per request from the raw
// schedule and treated as immutable afterwards. A weekday with no entry is
// closed.
type Index map[time.Weekday]DayHours

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

type rawDay struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen *bool  `json:"isOpen"`
}

// Parse builds an index from a raw schedule document: a JSON object keyed
// by weekday name (full or abbreviated, any case) with open/close/isOpen
// values. Unknown keys are ignored; a day without isOpen defaults to open
// when it states hours.
func Parse(raw []byte) (Index, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrUnparseable
	}
	var days map[string]rawDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	idx := make(Index, len(days))
	for key, day := range days {
		weekday, ok := weekdayNames[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		entry := DayHours{
			Open:  normalizeClock(day.Open),
			Close: normalizeClock(day.Close),
		}
		if day.IsOpen != nil {
			entry.IsOpen = *day.IsOpen
		} else {
			entry.IsOpen = entry.Open != "" || entry.Close != ""
		}
		idx[weekday] = entry
	}
	if len(idx) == 0 {
		return nil, ErrUnparseable
	}
	return idx, nil
}

// ParseString is Parse for schedules stored as a string column.
func ParseString(raw string) (Index, error) {
	return Parse([]byte(raw))
}

// Day returns the hours entry for a weekday, if present.
func (idx Index) Day(d time.Weekday) (DayHours, bool) {
	entry, ok := idx[d]
	return entry, ok
}

// OpenOn reports whether the business is open at all on the given weekday.
// A missing entry means closed; Sunday in particular defaults to closed
// when the schedule never mentions it.
func (idx Index) OpenOn(d time.Weekday) bool {
	entry, ok := idx[d]
	return ok && entry.IsOpen
}

// normalizeClock zero-pads schedule times like "9:00" to "09:00". Anything
// it cannot read is passed through untouched.
func normalizeClock(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) == 2 && len(parts[0]) == 1 {
		return "0" + value
	}
	return value
}
