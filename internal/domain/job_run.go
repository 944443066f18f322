package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunOutcome string

const (
	RunPending RunOutcome = "pending"
	RunSuccess RunOutcome = "success"
	RunFailure RunOutcome = "failure"
)

// JobRun is one recorded execution of a named job. A run is created pending
// and transitions exactly once to success or failure.
type JobRun struct {
	ID             uuid.UUID
	JobName        string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Outcome        RunOutcome
	ItemsProcessed int
	ItemsFailed    int
	Metadata       map[string]string
	ErrorSummary   string
}

// RunStats carries the terminal counters of a finished run.
type RunStats struct {
	ItemsProcessed int
	ItemsFailed    int
	Metadata       map[string]string
}
