package orchestrator

import (
	"context"
	"time"

	"city-pulse/internal/domain"
	"city-pulse/internal/repository"
	"city-pulse/internal/source"
)

// Checker computes per-source staleness from the job-run ledger. It is a
// pure read and safe to call at high frequency; it never triggers
// ingestion itself.
type Checker struct {
	registry *source.Registry
	ledger   repository.JobRunRepository
	items    repository.ContentItemRepository
	now      func() time.Time
}

func NewChecker(registry *source.Registry, ledger repository.JobRunRepository, items repository.ContentItemRepository) *Checker {
	return &Checker{registry: registry, ledger: ledger, items: items, now: time.Now}
}

// Check reports freshness for the given sources, defaulting to the whole
// catalog. A source with no successful run ever is always stale. The
// threshold comparison is strictly greater-than: a source exactly at its
// threshold is not yet stale.
func (c *Checker) Check(ctx context.Context, sources ...domain.Source) ([]domain.FreshnessRecord, error) {
	if len(sources) == 0 {
		sources = c.registry.List()
	}

	now := c.now().UTC()
	out := make([]domain.FreshnessRecord, 0, len(sources))

	for _, src := range sources {
		rec := domain.FreshnessRecord{SourceID: src.ID}

		count, err := c.items.CountBySource(ctx, src.ID)
		if err != nil {
			return nil, err
		}
		rec.ItemCount = count

		success, err := c.ledger.LastSuccessfulRun(ctx, src.IngestRef)
		if err != nil {
			return nil, err
		}
		if success == nil {
			rec.IsStale = true
			rec.HoursSinceSuccess = -1
			out = append(out, rec)
			continue
		}

		at := success.StartedAt.UTC()
		rec.LastSuccessAt = &at
		elapsed := now.Sub(at)
		rec.HoursSinceSuccess = elapsed.Hours()
		rec.IsStale = elapsed > src.Threshold

		out = append(out, rec)
	}

	return out, nil
}
