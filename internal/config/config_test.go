package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "city-pulse")
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_PORT", "8080")
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_NAME", "")

	_, err := Load()
	if !errors.Is(err, errMissingRequiredEnv) {
		t.Fatalf("err = %v, want missing-env sentinel", err)
	}
	if !strings.Contains(err.Error(), "APP_NAME") {
		t.Fatalf("err = %v, want APP_NAME named", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	orch := cfg.Orchestrator
	if orch.HealBudget != 25*time.Second {
		t.Fatalf("HealBudget = %s, want 25s", orch.HealBudget)
	}
	if orch.HealConcurrency != 3 {
		t.Fatalf("HealConcurrency = %d, want 3", orch.HealConcurrency)
	}
	if orch.LockLease != 120*time.Second {
		t.Fatalf("LockLease = %s, want 120s", orch.LockLease)
	}
	if orch.MinSelectedItems != 1 {
		t.Fatalf("MinSelectedItems = %d, want 1", orch.MinSelectedItems)
	}
	if orch.ScheduleEvery != 0 {
		t.Fatalf("ScheduleEvery = %s, want disabled", orch.ScheduleEvery)
	}
}

func TestLoadOrchestratorOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ORCH_HEAL_BUDGET_MS", "1500")
	t.Setenv("ORCH_SCHEDULE_SECONDS", "300")
	t.Setenv("QUALITY_MIN_SELECTED", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.HealBudget != 1500*time.Millisecond {
		t.Fatalf("HealBudget = %s", cfg.Orchestrator.HealBudget)
	}
	if cfg.Orchestrator.ScheduleEvery != 5*time.Minute {
		t.Fatalf("ScheduleEvery = %s", cfg.Orchestrator.ScheduleEvery)
	}
	if cfg.Orchestrator.MinSelectedItems != 3 {
		t.Fatalf("MinSelectedItems = %d", cfg.Orchestrator.MinSelectedItems)
	}
}

func TestParseThresholdOverrides(t *testing.T) {
	got := parseThresholdOverrides("city-news=12, transit-alerts=1.5, bogus, =3, weather-advisories=-1")
	if len(got) != 2 {
		t.Fatalf("overrides = %v, want 2 entries", got)
	}
	if got["city-news"] != 12*time.Hour {
		t.Fatalf("city-news = %s, want 12h", got["city-news"])
	}
	if got["transit-alerts"] != 90*time.Minute {
		t.Fatalf("transit-alerts = %s, want 90m", got["transit-alerts"])
	}

	if parseThresholdOverrides("") != nil {
		t.Fatal("empty input should yield nil")
	}
	if parseThresholdOverrides("nonsense") != nil {
		t.Fatal("garbage input should yield nil")
	}
}

func TestIntOrDefault(t *testing.T) {
	if got := intOrDefault("", 7); got != 7 {
		t.Fatalf("empty = %d, want default", got)
	}
	if got := intOrDefault("abc", 7); got != 7 {
		t.Fatalf("garbage = %d, want default", got)
	}
	if got := intOrDefault("-2", 7); got != 7 {
		t.Fatalf("negative = %d, want default", got)
	}
	if got := intOrDefault("42", 7); got != 42 {
		t.Fatalf("valid = %d, want 42", got)
	}
}
