// Package dispatcher manages case-worker fan-out over the work queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/worker"
)

// Dispatcher fans a finite worklist out to a pool of case workers.
type Dispatcher struct {
	queue   scraper.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue scraper.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every worker has drained the queue
// or the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx, d.queue)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, caseID string) error {
	if err := d.queue.Enqueue(ctx, caseID); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
