package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceHealthy       = "healthy"
	SourceStale         = "stale"
	SourceHealingFailed = "healing-failed"
)

// FreshnessRecord is the derived staleness view of one source. It is
// recomputed on every check and never persisted. HoursSinceSuccess is -1
// when the source has never had a successful run.
type FreshnessRecord struct {
	SourceID          string
	LastSuccessAt     *time.Time
	HoursSinceSuccess float64
	IsStale           bool
	ItemCount         int
}

// HealingAction records one re-ingestion attempt within a pass.
type HealingAction struct {
	SourceID      string    `json:"source_id"`
	Reason        string    `json:"reason"`
	TriggeredAt   time.Time `json:"triggered_at"`
	Succeeded     bool      `json:"succeeded"`
	ResultSummary string    `json:"result_summary"`
	DurationMs    int64     `json:"duration_ms"`
}

// QualityReport is the per-source outcome of scoring and deduplication.
type QualityReport struct {
	SourceID          string   `json:"source_id"`
	ItemsEvaluated    int      `json:"items_evaluated"`
	ItemsSelected     int      `json:"items_selected"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	AverageScore      float64  `json:"average_score"`
	Issues            []string `json:"issues"`
}

// SourceStatus is the consumer-facing view of one source after a pass.
// HoursOld is -1 when the source has never had a successful run.
type SourceStatus struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	HoursOld  float64 `json:"hours_old"`
	ItemCount int     `json:"item_count"`
}

// ReadinessReport is the stable contract returned to digest consumers and
// the operator surface. Consumers key off Ready and Errors only.
type ReadinessReport struct {
	PassID         uuid.UUID       `json:"pass_id"`
	Mode           string          `json:"mode"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	LockDenied     bool            `json:"lock_denied"`
	Ready          bool            `json:"ready"`
	Sources        []SourceStatus  `json:"sources"`
	HealingActions []HealingAction `json:"healing_actions"`
	Quality        []QualityReport `json:"quality"`
	Errors         []string        `json:"errors"`
}
