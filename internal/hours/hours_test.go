package hours

import (
	"errors"
	"testing"
	"time"
)

const sampleSchedule = `{
	"monday":    {"open": "9:00", "close": "17:00", "isOpen": true},
	"tuesday":   {"open": "09:00", "close": "17:00", "isOpen": true},
	"wednesday": {"open": "09:00", "close": "17:00", "isOpen": false},
	"sat":       {"open": "10:00", "close": "14:00"}
}`

func TestParseNormalizesDays(t *testing.T) {
	idx, err := ParseString(sampleSchedule)
	if err != nil {
		t.Fatalf("ParseString returned error: %v", err)
	}

	monday, ok := idx.Day(time.Monday)
	if !ok {
		t.Fatal("expected monday entry")
	}
	if monday.Open != "09:00" {
		t.Fatalf("expected zero-padded open time, got %q", monday.Open)
	}
	if !idx.OpenOn(time.Monday) {
		t.Fatal("monday should be open")
	}
	if idx.OpenOn(time.Wednesday) {
		t.Fatal("wednesday has isOpen=false")
	}
	if !idx.OpenOn(time.Saturday) {
		t.Fatal("saturday states hours without isOpen and should default open")
	}
}

func TestParseMissingSundayDefaultsClosed(t *testing.T) {
	idx, err := ParseString(sampleSchedule)
	if err != nil {
		t.Fatalf("ParseString returned error: %v", err)
	}
	if idx.OpenOn(time.Sunday) {
		t.Fatal("sunday has no entry and must default to closed")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json", `{"monday": "nine to five"}`} {
		if _, err := ParseString(raw); !errors.Is(err, ErrUnparseable) {
			t.Fatalf("expected ErrUnparseable for %q, got %v", raw, err)
		}
	}
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	idx, err := ParseString(`{"holidays": {"open": "09:00"}, "friday": {"open": "08:00", "close": "12:00"}}`)
	if err != nil {
		t.Fatalf("ParseString returned error: %v", err)
	}
	if len(idx) != 1 {
		t.Fatalf("expected only friday parsed, got %d entries", len(idx))
	}
}
