package schedule

import (
	"context"
	"log"
	"time"
)

// Schedule describes one recurring invocation. Scheduling is plain data
// passed into the runner; the jobs themselves take no dependency on
// wall-clock scheduling, they are only invoked.
type Schedule struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

type Runner struct {
	log *log.Logger
}

func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{log: logger}
}

// Start launches one ticker goroutine per schedule and returns
// immediately. All tickers stop when ctx is cancelled. Schedules with a
// non-positive interval or nil run func are skipped.
func (r *Runner) Start(ctx context.Context, schedules []Schedule) {
	if r == nil {
		return
	}
	for _, s := range schedules {
		if s.Every <= 0 || s.Run == nil {
			r.log.Printf("schedule name=%s status=skipped", s.Name)
			continue
		}
		s := s
		go r.loop(ctx, s)
	}
}

func (r *Runner) loop(ctx context.Context, s Schedule) {
	r.log.Printf("schedule name=%s every=%s status=started", s.Name, s.Every)
	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Printf("schedule name=%s status=stopped", s.Name)
			return
		case <-ticker.C:
			start := time.Now()
			s.Run(ctx)
			r.log.Printf("schedule name=%s status=ran duration=%s", s.Name, time.Since(start).Round(time.Millisecond))
		}
	}
}
