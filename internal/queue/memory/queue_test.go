package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewQueue(4)

	require.NoError(t, q.Enqueue(ctx, "id-1"))
	require.NoError(t, q.Enqueue(ctx, "id-2"))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "id-1", got)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "id-2", got)
}

func TestQueueDrainsAfterClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewQueue(4)
	require.NoError(t, q.Enqueue(ctx, "id-1"))
	q.Close()

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "id-1", got)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, scraper.ErrQueueClosed)
}

func TestQueueEnqueueAfterCloseFails(t *testing.T) {
	t.Parallel()
	q := NewQueue(1)
	q.Close()
	require.Error(t, q.Enqueue(context.Background(), "id-1"))
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	q := NewQueue(1)
	q.Close()
	require.NotPanics(t, q.Close)
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	t.Parallel()
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
