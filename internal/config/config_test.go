package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.AppointmentsTable != "appointments" {
		t.Fatalf("expected default appointments table, got %s", cfg.AppointmentsTable)
	}
	if cfg.SlotIntervalMinutes != 30 {
		t.Fatalf("expected default slot interval 30, got %d", cfg.SlotIntervalMinutes)
	}
	if cfg.ExtractionTimeout != 12*time.Second {
		t.Fatalf("expected default extraction timeout, got %s", cfg.ExtractionTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EXTRACTION_PROVIDER", " Bedrock ")
	t.Setenv("EXTRACTION_TIMEOUT", "3s")
	t.Setenv("SLOT_INTERVAL_MINUTES", "15")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.Port)
	}
	if cfg.ExtractionProvider != "bedrock" {
		t.Fatalf("expected normalized provider, got %q", cfg.ExtractionProvider)
	}
	if cfg.ExtractionTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.ExtractionTimeout)
	}
	if cfg.SlotIntervalMinutes != 15 {
		t.Fatalf("expected slot interval override, got %d", cfg.SlotIntervalMinutes)
	}
}
