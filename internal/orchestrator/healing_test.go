package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"testing"
	"time"

	"city-pulse/internal/domain"
	"city-pulse/internal/infrastructure/collector"
)

func newTestHealer(trigger *fakeTrigger, ledger *fakeLedger, checker *Checker) *Healer {
	return NewHealer(trigger, ledger, checker, 2, log.New(io.Discard, "", 0))
}

func TestHealRecordsRunAndSummary(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.results["city-news"] = collector.TriggerResult{ItemsCreated: 5, ItemsSkipped: 2}
	ledger := newFakeLedger()
	h := newTestHealer(trigger, ledger, nil)

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", IngestRef: "ingest.city-news"},
	}, ReasonStale, time.Second)

	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	a := actions[0]
	if !a.Succeeded || a.Reason != ReasonStale {
		t.Fatalf("unexpected action: %+v", a)
	}
	if !strings.Contains(a.ResultSummary, "created=5") {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
	if _, ok := ledger.lastSuccess["ingest.city-news"]; !ok {
		t.Fatal("successful heal not recorded in ledger")
	}
}

func TestHealZeroNewItemsIsSuccess(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.results["city-news"] = collector.TriggerResult{ItemsCreated: 0, ItemsSkipped: 4}
	h := newTestHealer(trigger, newFakeLedger(), nil)

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", IngestRef: "ingest.city-news"},
	}, ReasonStale, time.Second)

	a := actions[0]
	if !a.Succeeded {
		t.Fatal("empty harvest must still count as success")
	}
	if a.ResultSummary != "no new items (skipped=4)" {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
}

func TestHealTriggerError(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.errs["city-news"] = errors.New("upstream 503")
	ledger := newFakeLedger()
	h := newTestHealer(trigger, ledger, nil)

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", IngestRef: "ingest.city-news"},
	}, ReasonStale, time.Second)

	a := actions[0]
	if a.Succeeded {
		t.Fatal("trigger error must fail the action")
	}
	if a.Reason != ReasonTriggerError {
		t.Fatalf("reason = %s, want %s", a.Reason, ReasonTriggerError)
	}
	if !strings.Contains(a.ResultSummary, "upstream 503") {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if len(ledger.failed) != 1 || ledger.failed[0] != "ingest.city-news" {
		t.Fatalf("failed runs = %v", ledger.failed)
	}
}

func TestHealOneFailureDoesNotAbortOthers(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.errs["city-news"] = errors.New("boom")
	trigger.results["transit-alerts"] = collector.TriggerResult{ItemsCreated: 1}
	trigger.results["weather-advisories"] = collector.TriggerResult{ItemsCreated: 2}
	h := newTestHealer(trigger, newFakeLedger(), nil)

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "weather-advisories", IngestRef: "ingest.weather-advisories"},
		{ID: "city-news", IngestRef: "ingest.city-news"},
		{ID: "transit-alerts", IngestRef: "ingest.transit-alerts"},
	}, ReasonForced, time.Second)

	if len(actions) != 3 {
		t.Fatalf("actions = %d, want 3", len(actions))
	}
	if !sort.SliceIsSorted(actions, func(i, j int) bool { return actions[i].SourceID < actions[j].SourceID }) {
		t.Fatalf("actions not ordered by source id: %+v", actions)
	}
	succeeded := 0
	for _, a := range actions {
		if a.Succeeded {
			succeeded++
		}
	}
	if succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", succeeded)
	}
}

func TestHealBudgetBoundsEachCall(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.hang["city-news"] = true
	h := newTestHealer(trigger, newFakeLedger(), nil)

	start := time.Now()
	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", IngestRef: "ingest.city-news"},
	}, ReasonStale, 50*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("heal took %s against a 50ms budget", elapsed)
	}
	a := actions[0]
	if a.Succeeded || a.Reason != ReasonTimeout {
		t.Fatalf("unexpected action: %+v", a)
	}
	if !strings.Contains(a.ResultSummary, "did not complete") {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
}

func TestHealConfirmAnnotatesLingeringStaleness(t *testing.T) {
	trigger := newFakeTrigger()
	trigger.results["city-news"] = collector.TriggerResult{ItemsCreated: 1}
	ledger := newFakeLedger()
	// The recorder drops success writes, so the post-heal check still
	// sees a source with no successful run.
	ledger.successNoop = true
	checker := NewChecker(nil, ledger, newFakeItems())
	h := newTestHealer(trigger, ledger, checker)

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", Threshold: 6 * time.Hour, IngestRef: "ingest.city-news"},
	}, ReasonStale, time.Second)

	a := actions[0]
	if !a.Succeeded {
		t.Fatalf("trigger succeeded, action should too: %+v", a)
	}
	if !strings.HasSuffix(a.ResultSummary, "; still stale after trigger") {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
}

func TestHealWithoutCollectorFailsAction(t *testing.T) {
	ledger := newFakeLedger()
	h := NewHealer(nil, ledger, nil, 1, log.New(io.Discard, "", 0))

	actions := h.Heal(context.Background(), []domain.Source{
		{ID: "city-news", IngestRef: "ingest.city-news"},
	}, ReasonStale, time.Second)

	a := actions[0]
	if a.Succeeded || a.Reason != ReasonTriggerError {
		t.Fatalf("unexpected action: %+v", a)
	}
	if a.ResultSummary != "no collector configured" {
		t.Fatalf("summary = %q", a.ResultSummary)
	}
	if got := ledger.startedJobs(); len(got) != 0 {
		t.Fatalf("runs started without a collector: %v", got)
	}
}

func TestHealNoTargets(t *testing.T) {
	h := newTestHealer(newFakeTrigger(), newFakeLedger(), nil)
	if actions := h.Heal(context.Background(), nil, ReasonStale, time.Second); actions != nil {
		t.Fatalf("actions = %+v, want nil", actions)
	}
}
