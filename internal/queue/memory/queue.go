// Package memory provides the in-memory case queue feeding the worker pool.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// Queue is a bounded in-memory case-id queue with context-aware operations.
// Close it after the worklist is enqueued; workers drain the remainder and
// then observe scraper.ErrQueueClosed.
type Queue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a case id into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, caseID string) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return errors.New("enqueue on closed queue")
	}
	q.closeMu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- caseID:
		return nil
	}
}

// Dequeue pops the next case id, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case caseID, ok := <-q.ch:
		if !ok {
			return "", scraper.ErrQueueClosed
		}
		return caseID, nil
	}
}

// Close closes the underlying channel; queued ids remain consumable.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
