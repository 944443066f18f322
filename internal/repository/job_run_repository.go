package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"city-pulse/internal/database"
	"city-pulse/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RunRecorder finalizes a started job run exactly once. Calling Success or
// Fail after the run is terminal logs a warning and does nothing, since job
// code may have several exit paths.
type RunRecorder interface {
	Success(ctx context.Context, stats domain.RunStats)
	Fail(ctx context.Context, runErr error)
}

// JobRunRepository is the ledger of job executions. Writes are best-effort:
// a ledger failure is logged and swallowed, never propagated to the job
// being observed.
type JobRunRepository interface {
	Start(ctx context.Context, jobName string) RunRecorder
	Record(ctx context.Context, jobName string, outcome domain.RunOutcome, stats domain.RunStats, errSummary string) error
	LastRun(ctx context.Context, jobName string) (*domain.JobRun, error)
	LastSuccessfulRun(ctx context.Context, jobName string) (*domain.JobRun, error)
	StaleJobs(ctx context.Context, expected map[string]time.Duration) (stale []domain.JobRun, hung []domain.JobRun, err error)
}

type PostgresJobRunRepository struct {
	db  database.DB
	log *log.Logger
}

func NewPostgresJobRunRepository(db database.DB, logger *log.Logger) *PostgresJobRunRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &PostgresJobRunRepository{db: db, log: logger}
}

func (r *PostgresJobRunRepository) Start(ctx context.Context, jobName string) RunRecorder {
	h := &runHandle{repo: r, jobName: jobName}
	if r == nil || r.db == nil {
		return h
	}

	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO job_runs (id, job_name, outcome) VALUES ($1, $2, 'pending')`,
		id, jobName,
	)
	if err != nil {
		r.log.Printf("ledger job=%s op=start status=error err=%v", jobName, err)
		return h
	}
	h.id = id
	return h
}

// Record writes an already-terminal run in one shot, used when a collector
// reports completion after the fact rather than holding an open handle.
func (r *PostgresJobRunRepository) Record(ctx context.Context, jobName string, outcome domain.RunOutcome, stats domain.RunStats, errSummary string) error {
	if r == nil || r.db == nil {
		return errors.New("nil db")
	}
	meta, err := marshalMetadata(stats.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO job_runs (id, job_name, outcome, finished_at, items_processed, items_failed, metadata, error_summary)
		 VALUES ($1, $2, $3, now(), $4, $5, $6, NULLIF($7, ''))`,
		uuid.New(), jobName, string(outcome), stats.ItemsProcessed, stats.ItemsFailed, meta, errSummary,
	)
	return err
}

func (r *PostgresJobRunRepository) LastRun(ctx context.Context, jobName string) (*domain.JobRun, error) {
	return r.lastRunWhere(ctx, jobName, "")
}

func (r *PostgresJobRunRepository) LastSuccessfulRun(ctx context.Context, jobName string) (*domain.JobRun, error) {
	return r.lastRunWhere(ctx, jobName, "AND outcome = 'success'")
}

func (r *PostgresJobRunRepository) lastRunWhere(ctx context.Context, jobName, cond string) (*domain.JobRun, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("nil db")
	}
	row := r.db.QueryRow(ctx,
		`SELECT id, job_name, started_at, finished_at, outcome, items_processed, items_failed, metadata, COALESCE(error_summary, '')
		 FROM job_runs
		 WHERE job_name = $1 `+cond+`
		 ORDER BY started_at DESC
		 LIMIT 1`,
		jobName,
	)

	var run domain.JobRun
	var outcome string
	var meta []byte
	err := row.Scan(&run.ID, &run.JobName, &run.StartedAt, &run.FinishedAt, &outcome, &run.ItemsProcessed, &run.ItemsFailed, &meta, &run.ErrorSummary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	run.Outcome = domain.RunOutcome(outcome)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &run.Metadata)
	}
	return &run, nil
}

// StaleJobs partitions the monitored jobs into stale ones (last success
// older than the expected cadence, or no success at all) and hung ones
// (last run still pending past twice its cadence). A hung run is the more
// severe signal and is reported separately.
func (r *PostgresJobRunRepository) StaleJobs(ctx context.Context, expected map[string]time.Duration) ([]domain.JobRun, []domain.JobRun, error) {
	if r == nil || r.db == nil {
		return nil, nil, errors.New("nil db")
	}

	var stale, hung []domain.JobRun
	now := time.Now().UTC()

	for jobName, interval := range expected {
		last, err := r.LastRun(ctx, jobName)
		if err != nil {
			return nil, nil, err
		}

		if last != nil && last.Outcome == domain.RunPending && now.Sub(last.StartedAt) > 2*interval {
			hung = append(hung, *last)
			continue
		}

		success, err := r.LastSuccessfulRun(ctx, jobName)
		if err != nil {
			return nil, nil, err
		}
		if success == nil {
			stale = append(stale, domain.JobRun{JobName: jobName, Outcome: domain.RunFailure})
			continue
		}
		if now.Sub(success.StartedAt) > interval {
			stale = append(stale, *success)
		}
	}

	return stale, hung, nil
}

type runHandle struct {
	repo    *PostgresJobRunRepository
	id      uuid.UUID
	jobName string
	done    atomic.Bool
}

func (h *runHandle) Success(ctx context.Context, stats domain.RunStats) {
	h.finalize(ctx, domain.RunSuccess, stats, "")
}

func (h *runHandle) Fail(ctx context.Context, runErr error) {
	summary := ""
	if runErr != nil {
		summary = runErr.Error()
	}
	h.finalize(ctx, domain.RunFailure, domain.RunStats{}, summary)
}

func (h *runHandle) finalize(ctx context.Context, outcome domain.RunOutcome, stats domain.RunStats, errSummary string) {
	if h == nil {
		return
	}
	if !h.done.CompareAndSwap(false, true) {
		if h.repo != nil {
			h.repo.log.Printf("ledger job=%s op=finalize status=warn reason=already_terminal", h.jobName)
		}
		return
	}
	if h.repo == nil || h.repo.db == nil || h.id == uuid.Nil {
		return
	}

	meta, err := marshalMetadata(stats.Metadata)
	if err != nil {
		h.repo.log.Printf("ledger job=%s op=finalize status=error err=%v", h.jobName, err)
		return
	}

	affected, err := h.repo.db.Exec(ctx,
		`UPDATE job_runs
		 SET outcome = $2, finished_at = now(), items_processed = $3, items_failed = $4, metadata = $5, error_summary = NULLIF($6, '')
		 WHERE id = $1 AND outcome = 'pending'`,
		h.id, string(outcome), stats.ItemsProcessed, stats.ItemsFailed, meta, errSummary,
	)
	if err != nil {
		h.repo.log.Printf("ledger job=%s op=finalize status=error err=%v", h.jobName, err)
		return
	}
	if affected == 0 {
		h.repo.log.Printf("ledger job=%s op=finalize status=warn reason=already_terminal", h.jobName)
	}
}

func marshalMetadata(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}
