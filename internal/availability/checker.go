package availability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bookline-ai/bookline/internal/appointment"
	"github.com/bookline-ai/bookline/internal/hours"
	"github.com/bookline-ai/bookline/pkg/logging"
)

// DefaultSlotInterval is the step used when walking a day for open slots.
const DefaultSlotInterval = 30 * time.Minute

// ErrUnknown means business hours were absent or unparseable. It signals
// "cannot confirm availability", not "unavailable": callers should proceed
// optimistically rather than block a booking on missing configuration.
var ErrUnknown = errors.New("availability: cannot confirm availability")

// HoursProvider resolves a business's schedule into a normalized index.
type HoursProvider interface {
	BusinessHours(ctx context.Context, businessID string) (hours.Index, error)
}

// BookingLookup finds existing appointments that could occupy a slot.
type BookingLookup interface {
	ListByBusinessDate(ctx context.Context, businessID, date string) ([]appointment.Appointment, error)
}

// Checker decides whether a candidate (business, date, time) is bookable.
type Checker struct {
	hours    HoursProvider
	bookings BookingLookup
	logger   *logging.Logger
}

// NewChecker constructs an availability checker.
func NewChecker(hoursProvider HoursProvider, bookings BookingLookup, logger *logging.Logger) *Checker {
	if hoursProvider == nil {
		panic("availability: hours provider required")
	}
	if bookings == nil {
		panic("availability: booking lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{hours: hoursProvider, bookings: bookings, logger: logger}
}

var (
	clockRE = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?|a|p)?\s*$`)
	noonRE  = regexp.MustCompile(`(?i)^\s*(noon|midday)\s*$`)
)

// NormalizeTime converts a user-supplied time-of-day ("3pm", "3:30 PM",
// "15:00", "noon") to zero-padded 24-hour "HH:MM". Minutes default to 0 on
// partial input.
func NormalizeTime(value string) (string, error) {
	if noonRE.MatchString(value) {
		return "12:00", nil
	}
	if strings.EqualFold(strings.TrimSpace(value), "midnight") {
		return "00:00", nil
	}

	match := clockRE.FindStringSubmatch(value)
	if match == nil {
		return "", fmt.Errorf("availability: unrecognized time %q", value)
	}

	hour, err := strconv.Atoi(match[1])
	if err != nil {
		return "", fmt.Errorf("availability: unrecognized time %q", value)
	}
	minutes := match[2]
	if minutes == "" {
		minutes = "00"
	} else if minutes > "59" {
		return "", fmt.Errorf("availability: unrecognized time %q", value)
	}

	meridiem := strings.ToLower(strings.ReplaceAll(match[3], ".", ""))
	switch {
	case strings.HasPrefix(meridiem, "p"):
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("availability: unrecognized time %q", value)
		}
		if hour != 12 {
			hour += 12
		}
	case strings.HasPrefix(meridiem, "a"):
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("availability: unrecognized time %q", value)
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return "", fmt.Errorf("availability: unrecognized time %q", value)
		}
	}

	return fmt.Sprintf("%02d:%s", hour, minutes), nil
}

// IsAvailable reports whether the slot can take a new booking. A slot may
// hold at most one live (requested or confirmed) appointment.
func (c *Checker) IsAvailable(ctx context.Context, businessID, date, timeOfDay string) (bool, error) {
	normalized, err := NormalizeTime(timeOfDay)
	if err != nil {
		return false, err
	}

	day, err := c.dayHours(ctx, businessID, date)
	if err != nil {
		return false, err
	}
	if day == nil {
		return false, nil
	}

	// Both sides are zero-padded HH:MM, so lexicographic comparison is a
	// valid time comparison. Missing hours on an open day fall through to
	// the conflict check.
	if day.Open != "" && day.Close != "" {
		if normalized < day.Open || normalized > day.Close {
			return false, nil
		}
	}

	return c.slotFree(ctx, businessID, date, normalized)
}

// ListAvailableSlots enumerates open times for a date in fixed interval
// steps. A closed or fully booked day yields an empty slice.
func (c *Checker) ListAvailableSlots(ctx context.Context, businessID, date string, interval time.Duration) ([]string, error) {
	if interval <= 0 {
		interval = DefaultSlotInterval
	}

	day, err := c.dayHours(ctx, businessID, date)
	if err != nil {
		return nil, err
	}
	if day == nil || day.Open == "" || day.Close == "" {
		return []string{}, nil
	}

	open, err := time.Parse("15:04", day.Open)
	if err != nil {
		return nil, fmt.Errorf("%w: bad open time %q", ErrUnknown, day.Open)
	}
	close, err := time.Parse("15:04", day.Close)
	if err != nil {
		return nil, fmt.Errorf("%w: bad close time %q", ErrUnknown, day.Close)
	}

	slots := []string{}
	for t := open; t.Before(close); t = t.Add(interval) {
		candidate := t.Format("15:04")
		free, err := c.slotFree(ctx, businessID, date, candidate)
		if err != nil {
			return nil, err
		}
		if free {
			slots = append(slots, candidate)
		}
	}
	return slots, nil
}

// dayHours loads the schedule and resolves the entry for the date's
// weekday. A nil day means the business is closed that day; Sunday with no
// explicit entry defaults to closed like any other missing weekday.
func (c *Checker) dayHours(ctx context.Context, businessID, date string) (*hours.DayHours, error) {
	parsed, err := time.Parse(appointment.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("availability: bad date %q: %w", date, err)
	}

	idx, err := c.hours.BusinessHours(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	day, ok := idx.Day(parsed.Weekday())
	if !ok || !day.IsOpen {
		return nil, nil
	}
	return &day, nil
}

func (c *Checker) slotFree(ctx context.Context, businessID, date, normalized string) (bool, error) {
	existing, err := c.bookings.ListByBusinessDate(ctx, businessID, date)
	if err != nil {
		return false, fmt.Errorf("availability: list bookings: %w", err)
	}
	for _, appt := range existing {
		if appt.Status != appointment.StatusRequested && appt.Status != appointment.StatusConfirmed {
			continue
		}
		apptTime, err := NormalizeTime(appt.PreferredTime)
		if err != nil {
			continue
		}
		if apptTime == normalized {
			return false, nil
		}
	}
	return true, nil
}
