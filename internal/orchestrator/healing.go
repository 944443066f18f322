package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"city-pulse/internal/domain"
	"city-pulse/internal/infrastructure/collector"
	"city-pulse/internal/repository"
)

const (
	ReasonStale        = "stale"
	ReasonForced       = "forced"
	ReasonTimeout      = "timeout"
	ReasonTriggerError = "trigger-error"
)

// Healer re-ingests failing sources through the external collector. One
// source's failure never aborts healing of the others, and nothing is
// retried within the same pass: retries belong to the next scheduled pass,
// which keeps worst-case orchestration latency bounded.
type Healer struct {
	trigger     collector.Client
	ledger      repository.JobRunRepository
	checker     *Checker
	concurrency int
	log         *log.Logger
}

func NewHealer(trigger collector.Client, ledger repository.JobRunRepository, checker *Checker, concurrency int, logger *log.Logger) *Healer {
	if concurrency <= 0 {
		concurrency = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Healer{
		trigger:     trigger,
		ledger:      ledger,
		checker:     checker,
		concurrency: concurrency,
		log:         logger,
	}
}

// Heal triggers re-ingestion for every given source, each bounded by
// budget, then re-checks freshness of the attempted set to confirm the
// remedy took. The returned actions are ordered by source id.
func (h *Healer) Heal(ctx context.Context, targets []domain.Source, reason string, budget time.Duration) []domain.HealingAction {
	if h == nil || len(targets) == 0 {
		return nil
	}
	if budget <= 0 {
		budget = 25 * time.Second
	}

	pool := newWorkerPool(h.concurrency, len(targets))
	results := pool.Run(ctx)

	for _, src := range targets {
		src := src
		pool.Submit(func(ctx context.Context) domain.HealingAction {
			return h.healOne(ctx, src, reason, budget)
		})
	}
	pool.Close()

	actions := make([]domain.HealingAction, 0, len(targets))
	for a := range results {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].SourceID < actions[j].SourceID })

	h.confirm(ctx, targets, actions)
	return actions
}

func (h *Healer) healOne(ctx context.Context, src domain.Source, reason string, budget time.Duration) domain.HealingAction {
	action := domain.HealingAction{
		SourceID:    src.ID,
		Reason:      reason,
		TriggeredAt: time.Now().UTC(),
	}

	if h.trigger == nil {
		action.Reason = ReasonTriggerError
		action.ResultSummary = "no collector configured"
		h.log.Printf("healing source=%s status=error reason=%s", src.ID, action.Reason)
		return action
	}

	run := h.ledger.Start(ctx, src.IngestRef)

	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	res, err := h.trigger.Trigger(callCtx, src.ID)
	action.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			action.Reason = ReasonTimeout
			action.ResultSummary = fmt.Sprintf("trigger did not complete within %s", budget)
		} else {
			action.Reason = ReasonTriggerError
			action.ResultSummary = err.Error()
		}
		action.Succeeded = false
		run.Fail(ctx, err)
		h.log.Printf("healing source=%s status=error reason=%s duration_ms=%d err=%v", src.ID, action.Reason, action.DurationMs, err)
		return action
	}

	action.Succeeded = true
	if res.ItemsCreated == 0 {
		// Trigger worked but upstream had nothing new. Reported, not failed.
		action.ResultSummary = fmt.Sprintf("no new items (skipped=%d)", res.ItemsSkipped)
	} else {
		action.ResultSummary = fmt.Sprintf("created=%d skipped=%d errors=%d", res.ItemsCreated, res.ItemsSkipped, len(res.Errors))
	}

	run.Success(ctx, domain.RunStats{
		ItemsProcessed: res.ItemsCreated + res.ItemsSkipped,
		ItemsFailed:    len(res.Errors),
	})
	h.log.Printf("healing source=%s status=ok created=%d skipped=%d duration_ms=%d", src.ID, res.ItemsCreated, res.ItemsSkipped, action.DurationMs)
	return action
}

// confirm re-runs the freshness check for just the attempted sources and
// annotates actions whose trigger nominally succeeded without resolving
// staleness.
func (h *Healer) confirm(ctx context.Context, targets []domain.Source, actions []domain.HealingAction) {
	if h.checker == nil || len(actions) == 0 {
		return
	}
	records, err := h.checker.Check(ctx, targets...)
	if err != nil {
		h.log.Printf("healing op=confirm status=error err=%v", err)
		return
	}

	staleByID := make(map[string]bool, len(records))
	for _, r := range records {
		staleByID[r.SourceID] = r.IsStale
	}
	for i := range actions {
		if actions[i].Succeeded && staleByID[actions[i].SourceID] {
			actions[i].ResultSummary += "; still stale after trigger"
		}
	}
}
