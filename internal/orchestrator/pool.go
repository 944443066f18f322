package orchestrator

import (
	"context"
	"sync"

	"city-pulse/internal/domain"
)

type healTask func(ctx context.Context) domain.HealingAction

// workerPool fans healing tasks out to a bounded number of workers so a
// large stale set cannot overwhelm the collector or the database pool.
type workerPool struct {
	workers int
	tasks   chan healTask
	wg      sync.WaitGroup
}

func newWorkerPool(workers, buffer int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &workerPool{
		workers: workers,
		tasks:   make(chan healTask, buffer),
	}
}

func (p *workerPool) Submit(t healTask) {
	if p == nil || t == nil {
		return
	}
	p.tasks <- t
}

func (p *workerPool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

func (p *workerPool) Run(ctx context.Context) <-chan domain.HealingAction {
	out := make(chan domain.HealingAction, p.workers*64)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					if t == nil {
						continue
					}
					action := t(ctx)
					select {
					case <-ctx.Done():
						return
					case out <- action:
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()

	return out
}
