package appointment

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func TestResolveRelativeDate(t *testing.T) {
	cases := []struct {
		message string
		want    string
		ok      bool
	}{
		{"book for tomorrow", "2025-06-11", true},
		{"can I come in today?", "2025-06-10", true},
		{"day after tomorrow works", "2025-06-12", true},
		{"tommorow please", "2025-06-11", true},
		{"tmrw", "2025-06-11", true},
		{"see you tonight", "2025-06-10", true},
		{"next friday", "", false},
		{"on 2025-06-20", "", false},
	}
	for _, tc := range cases {
		got, ok := ResolveRelativeDate(tc.message, testNow)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ResolveRelativeDate(%q) = %q, %v; want %q, %v", tc.message, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBareRelativeDate(t *testing.T) {
	if date, ok := BareRelativeDate("book it for tomorrow please", testNow); !ok || date != "2025-06-11" {
		t.Fatalf("expected bare relative date, got %q, %v", date, ok)
	}
	if _, ok := BareRelativeDate("tomorrow at 3pm for a haircut", testNow); ok {
		t.Fatal("message with extra content should not count as bare")
	}
	if _, ok := BareRelativeDate("what are your hours", testNow); ok {
		t.Fatal("message without a relative term should not match")
	}
}

func TestNormalizeYear(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2023-06-15", "2025-06-15"}, // stale training-era year
		{"2040-06-15", "2025-06-15"}, // runaway future year
		{"2025-06-15", "2025-06-15"},
		{"2031-01-02", "2031-01-02"}, // within the ten-year envelope
		{"junk", "junk"},
	}
	for _, tc := range cases {
		if got := normalizeYear(tc.date, testNow); got != tc.want {
			t.Fatalf("normalizeYear(%q) = %q, want %q", tc.date, got, tc.want)
		}
	}
}

func TestRegressiveDateChange(t *testing.T) {
	cases := []struct {
		prior     string
		candidate string
		want      bool
	}{
		{"2025-04-09", "2025-10-09", true},  // month jump >2, same day
		{"2025-04-09", "2025-09-04", true},  // month/day transposed
		{"2025-04-09", "2025-13-09", true},  // impossible month
		{"2025-04-09", "2025-05-12", false}, // plausible intentional change
		{"2025-04-09", "2025-06-20", false},
		{"", "2025-06-20", false},
		{"2025-04-09", "garbled", false},
	}
	for _, tc := range cases {
		if got := regressiveDateChange(tc.prior, tc.candidate); got != tc.want {
			t.Fatalf("regressiveDateChange(%q, %q) = %v, want %v", tc.prior, tc.candidate, got, tc.want)
		}
	}
}

func TestReconcileDateKeepsPriorOnRegression(t *testing.T) {
	date, rejected := reconcileDate("2025-04-09", "2025-10-09", testNow)
	if !rejected || date != "2025-04-09" {
		t.Fatalf("expected prior date retained, got %q (rejected=%v)", date, rejected)
	}
}

func TestReconcileDateNormalizesYearBeforeGuard(t *testing.T) {
	// A stale year alone must not trigger the regression guard once rewritten.
	date, rejected := reconcileDate("2025-06-11", "2023-06-11", testNow)
	if rejected || date != "2025-06-11" {
		t.Fatalf("expected normalized candidate accepted, got %q (rejected=%v)", date, rejected)
	}
}
