// Package captcha provides the bounded buffer of pre-solved captcha solutions.
package captcha

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// Buffer is a bounded FIFO of captcha solutions, safe for concurrent use.
// Unlike a plain channel it supports returning a consumed-but-unused solution
// to the head, which the token refresh loop relies on after a failed exchange.
type Buffer struct {
	mu       sync.Mutex
	items    []string
	capacity int

	// changed is closed and replaced on every mutation so that all waiters
	// wake and re-check their condition.
	changed chan struct{}
}

// NewBuffer constructs a buffer with the given capacity (minimum 1).
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		changed:  make(chan struct{}),
	}
}

// Put appends a solution, blocking while the buffer is full. It aborts with
// the context error if ctx finishes first.
func (b *Buffer) Put(ctx context.Context, solution string) error {
	return b.insert(ctx, solution, false)
}

// PutFront returns a solution to the head of the buffer so the next Take
// receives it first. Used when a token exchange fails and the solution is
// still unconsumed on the provider side.
func (b *Buffer) PutFront(ctx context.Context, solution string) error {
	return b.insert(ctx, solution, true)
}

func (b *Buffer) insert(ctx context.Context, solution string, front bool) error {
	for {
		b.mu.Lock()
		if len(b.items) < b.capacity {
			if front {
				b.items = append([]string{solution}, b.items...)
			} else {
				b.items = append(b.items, solution)
			}
			b.broadcastLocked()
			b.mu.Unlock()
			return nil
		}
		wait := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("captcha put canceled: %w", ctx.Err())
		case <-wait:
		}
	}
}

// Take removes and returns the head solution, blocking up to timeout. It
// returns scraper.ErrExhausted once the timeout elapses with the buffer still
// empty, or the context error if ctx finishes first.
func (b *Buffer) Take(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if len(b.items) > 0 {
			solution := b.items[0]
			b.items = b.items[1:]
			b.broadcastLocked()
			b.mu.Unlock()
			return solution, nil
		}
		wait := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("captcha take canceled: %w", ctx.Err())
		case <-timer.C:
			return "", scraper.ErrExhausted
		case <-wait:
		}
	}
}

// Len returns the number of buffered solutions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Full reports whether the buffer is at capacity.
func (b *Buffer) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) >= b.capacity
}

func (b *Buffer) broadcastLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}
