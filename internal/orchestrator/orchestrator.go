package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"city-pulse/internal/domain"
	"city-pulse/internal/repository"
	"city-pulse/internal/source"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeStatus   Mode = "status"
	ModeAutoHeal Mode = "auto-heal"
	ModeForce    Mode = "force"
)

// PassLockKey serializes orchestration passes across processes: a manual
// force-heal and a scheduled tick must never double-heal.
const PassLockKey = "orchestrator.pass"

const passJobName = "orchestrator.pass"

// Notifier receives every completed pass report, e.g. for broadcast to
// operator dashboards.
type Notifier interface {
	PassCompleted(report domain.ReadinessReport)
}

type snapshotCache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SnapshotKey is where the latest pass report is cached for the
// high-frequency operator status surface.
const SnapshotKey = "orchestrator:report:latest"

type Config struct {
	LockLease        time.Duration
	HealBudget       time.Duration
	MinSelectedItems int
}

// Orchestrator composes the freshness check, healing and quality scoring
// into one pass with a single readiness verdict.
type Orchestrator struct {
	registry *source.Registry
	checker  *Checker
	healer   *Healer
	scorer   *Scorer
	locks    repository.LockRepository
	items    repository.ContentItemRepository
	ledger   repository.JobRunRepository
	cfg      Config
	log      *log.Logger

	notifier Notifier
	cache    snapshotCache
}

func New(
	registry *source.Registry,
	checker *Checker,
	healer *Healer,
	scorer *Scorer,
	locks repository.LockRepository,
	items repository.ContentItemRepository,
	ledger repository.JobRunRepository,
	cfg Config,
	logger *log.Logger,
) *Orchestrator {
	if cfg.LockLease <= 0 {
		cfg.LockLease = 2 * time.Minute
	}
	if cfg.HealBudget <= 0 {
		cfg.HealBudget = 25 * time.Second
	}
	if cfg.MinSelectedItems < 0 {
		cfg.MinSelectedItems = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		registry: registry,
		checker:  checker,
		healer:   healer,
		scorer:   scorer,
		locks:    locks,
		items:    items,
		ledger:   ledger,
		cfg:      cfg,
		log:      logger,
	}
}

// SetNotifier attaches a pass-report consumer. Optional.
func (o *Orchestrator) SetNotifier(n Notifier) {
	if o != nil {
		o.notifier = n
	}
}

// SetSnapshotCache attaches a cache for the latest report. Optional.
func (o *Orchestrator) SetSnapshotCache(c snapshotCache) {
	if o != nil {
		o.cache = c
	}
}

// RunStatus is the read-only mode: freshness and quality are computed and
// reported, nothing is healed and no lock is taken.
func (o *Orchestrator) RunStatus(ctx context.Context) (*domain.ReadinessReport, error) {
	return o.run(ctx, ModeStatus, nil)
}

// RunAutoHeal runs the full pass, healing only sources the freshness check
// flags as stale.
func (o *Orchestrator) RunAutoHeal(ctx context.Context) (*domain.ReadinessReport, error) {
	return o.run(ctx, ModeAutoHeal, nil)
}

// RunForce skips the staleness gate and heals the requested sources
// unconditionally (default: all). Unknown source ids are a contract
// violation and return an error before anything runs.
func (o *Orchestrator) RunForce(ctx context.Context, sourceIDs ...string) (*domain.ReadinessReport, error) {
	return o.run(ctx, ModeForce, sourceIDs)
}

// EnsureReady is the single entry point for digest consumers. Ready is
// true only when zero sources remain stale and every source clears the
// minimum selection count. Partial success is not ready: a digest is
// either trustworthy or it is not.
func (o *Orchestrator) EnsureReady(ctx context.Context) (*domain.ReadinessReport, error) {
	return o.run(ctx, ModeAutoHeal, nil)
}

func (o *Orchestrator) run(ctx context.Context, mode Mode, sourceIDs []string) (report *domain.ReadinessReport, err error) {
	targets, err := o.resolveTargets(sourceIDs)
	if err != nil {
		return nil, err
	}

	report = &domain.ReadinessReport{
		PassID:         uuid.New(),
		Mode:           string(mode),
		StartedAt:      time.Now().UTC(),
		Sources:        []domain.SourceStatus{},
		HealingActions: []domain.HealingAction{},
		Quality:        []domain.QualityReport{},
		Errors:         []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			report.Ready = false
			report.Errors = append(report.Errors, fmt.Sprintf("pass panic: %v", r))
			o.log.Printf("orchestrator pass=%s mode=%s status=panic err=%v", report.PassID, mode, r)
			err = nil
		}
		report.FinishedAt = time.Now().UTC()
		o.publish(report)
	}()

	o.log.Printf("orchestrator pass=%s mode=%s phase=start sources=%d", report.PassID, mode, len(targets))

	if mode != ModeStatus {
		token, lockErr := o.locks.Acquire(ctx, PassLockKey, o.cfg.LockLease)
		if lockErr != nil {
			report.Errors = append(report.Errors, "lock: "+lockErr.Error())
			return report, nil
		}
		if token == "" {
			// Expected concurrency outcome, not a failure: another pass
			// holds the lease. Cheap to retry on the next tick.
			report.LockDenied = true
			o.log.Printf("orchestrator pass=%s mode=%s phase=locking status=denied", report.PassID, mode)
			return report, nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if relErr := o.locks.Release(releaseCtx, PassLockKey, token); relErr != nil {
				o.log.Printf("orchestrator pass=%s op=release_lock status=error err=%v", report.PassID, relErr)
			}
		}()

		// The cached report is about to go out of date. Drop it so status
		// readers fall back to a fresh read-only pass while this one runs.
		if o.cache != nil {
			if delErr := o.cache.Delete(ctx, SnapshotKey); delErr != nil {
				o.log.Printf("orchestrator pass=%s op=invalidate_snapshot status=error err=%v", report.PassID, delErr)
			}
		}

		// Only mutating passes leave a ledger trail; status mode stays a
		// pure read no matter how often the operator surface polls it.
		passRun := o.ledger.Start(ctx, passJobName)
		defer func() {
			if len(report.Errors) > 0 {
				passRun.Fail(context.Background(), fmt.Errorf("%d errors", len(report.Errors)))
				return
			}
			passRun.Success(context.Background(), domain.RunStats{ItemsProcessed: len(targets)})
		}()
	}

	records, checkErr := o.checker.Check(ctx, targets...)
	if checkErr != nil {
		report.Errors = append(report.Errors, "freshness: "+checkErr.Error())
		return report, nil
	}

	if mode != ModeStatus {
		healTargets, reason := o.healTargets(mode, targets, records)
		if len(healTargets) > 0 {
			report.HealingActions = o.healer.Heal(ctx, healTargets, reason, o.cfg.HealBudget)

			// Heal recorded new runs; the verdict needs the post-heal view.
			records, checkErr = o.checker.Check(ctx, targets...)
			if checkErr != nil {
				report.Errors = append(report.Errors, "freshness: "+checkErr.Error())
				return report, nil
			}
		}
	}

	hung, hungErr := o.hungRuns(ctx, targets)
	if hungErr != nil {
		report.Errors = append(report.Errors, "ledger: "+hungErr.Error())
	}

	report.Quality = o.scoreTargets(ctx, targets, report)
	o.buildVerdict(report, targets, records, hung)

	o.log.Printf("orchestrator pass=%s mode=%s phase=done ready=%t stale=%d actions=%d errors=%d duration=%s",
		report.PassID, mode, report.Ready, countStale(records), len(report.HealingActions), len(report.Errors),
		time.Since(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

func (o *Orchestrator) resolveTargets(sourceIDs []string) ([]domain.Source, error) {
	if len(sourceIDs) == 0 {
		return o.registry.List(), nil
	}
	out := make([]domain.Source, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		src, err := o.registry.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// healTargets selects what to heal: force heals the whole target set,
// auto-heal only what the snapshot flagged stale. Healing is decided on
// one consistent snapshot, never a moving target.
func (o *Orchestrator) healTargets(mode Mode, targets []domain.Source, records []domain.FreshnessRecord) ([]domain.Source, string) {
	if mode == ModeForce {
		return targets, ReasonForced
	}

	staleByID := make(map[string]bool, len(records))
	for _, r := range records {
		staleByID[r.SourceID] = r.IsStale
	}
	out := make([]domain.Source, 0, len(targets))
	for _, src := range targets {
		if staleByID[src.ID] {
			out = append(out, src)
		}
	}
	return out, ReasonStale
}

func (o *Orchestrator) scoreTargets(ctx context.Context, targets []domain.Source, report *domain.ReadinessReport) []domain.QualityReport {
	itemsBySource := make(map[string][]domain.ContentItem, len(targets))
	for _, src := range targets {
		items, err := o.items.ListRecentBySource(ctx, src.ID, 0)
		if err != nil {
			report.Errors = append(report.Errors, "items "+src.ID+": "+err.Error())
			items = nil
		}
		itemsBySource[src.ID] = items
	}
	return o.scorer.Score(itemsBySource)
}

// hungRuns asks the ledger for ingestion runs stuck in pending well past
// their source's cadence. A hung run is a more severe signal than plain
// staleness: the collector may be wedged, not merely idle.
func (o *Orchestrator) hungRuns(ctx context.Context, targets []domain.Source) ([]domain.JobRun, error) {
	expected := make(map[string]time.Duration, len(targets))
	for _, src := range targets {
		expected[src.IngestRef] = src.Threshold
	}
	// Staleness is already computed against the same ledger by the
	// checker; only the hung partition is new information here.
	_, hung, err := o.ledger.StaleJobs(ctx, expected)
	return hung, err
}

func (o *Orchestrator) buildVerdict(report *domain.ReadinessReport, targets []domain.Source, records []domain.FreshnessRecord, hung []domain.JobRun) {
	recordByID := make(map[string]domain.FreshnessRecord, len(records))
	for _, r := range records {
		recordByID[r.SourceID] = r
	}
	failedHeal := make(map[string]bool, len(report.HealingActions))
	for _, a := range report.HealingActions {
		if !a.Succeeded {
			failedHeal[a.SourceID] = true
			report.Errors = append(report.Errors, fmt.Sprintf("heal %s: %s: %s", a.SourceID, a.Reason, a.ResultSummary))
		}
	}
	selectedByID := make(map[string]int, len(report.Quality))
	for _, q := range report.Quality {
		selectedByID[q.SourceID] = q.ItemsSelected
	}

	ready := true
	for _, run := range hung {
		ready = false
		report.Errors = append(report.Errors, fmt.Sprintf("hung %s: run pending since %s", run.JobName, run.StartedAt.UTC().Format(time.RFC3339)))
	}
	for _, src := range targets {
		rec := recordByID[src.ID]
		status := domain.SourceHealthy
		switch {
		case failedHeal[src.ID]:
			status = domain.SourceHealingFailed
			ready = false
		case rec.IsStale:
			status = domain.SourceStale
			ready = false
		}
		if selectedByID[src.ID] < o.cfg.MinSelectedItems {
			// Quality shortfall blocks readiness even when ingestion
			// nominally succeeded.
			ready = false
			report.Errors = append(report.Errors, fmt.Sprintf("quality %s: selected %d below minimum %d", src.ID, selectedByID[src.ID], o.cfg.MinSelectedItems))
		}
		report.Sources = append(report.Sources, domain.SourceStatus{
			Name:      src.ID,
			Status:    status,
			HoursOld:  rec.HoursSinceSuccess,
			ItemCount: rec.ItemCount,
		})
	}

	report.Ready = ready && !report.LockDenied
}

func (o *Orchestrator) publish(report *domain.ReadinessReport) {
	if report == nil {
		return
	}
	if o.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := o.cache.SetJSON(ctx, SnapshotKey, report, 10*time.Minute); err != nil {
			o.log.Printf("orchestrator pass=%s op=snapshot status=error err=%v", report.PassID, err)
		}
		cancel()
	}
	if o.notifier != nil {
		o.notifier.PassCompleted(*report)
	}
}

func countStale(records []domain.FreshnessRecord) int {
	n := 0
	for _, r := range records {
		if r.IsStale {
			n++
		}
	}
	return n
}
