package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	queuememory "github.com/calcourts/portal-scraper/internal/queue/memory"
	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/stats"
	"github.com/calcourts/portal-scraper/internal/worker"
)

type stubTokens struct{}

func (stubTokens) Token() string { return "tok" }

type stubFetcher struct{}

func (stubFetcher) FetchCase(_ context.Context, caseID, _ string) (*scraper.CasePayload, error) {
	return &scraper.CasePayload{CaseNumber: "24CV" + caseID}, nil
}

type stubDocuments struct{}

func (stubDocuments) Process(context.Context, *scraper.CasePayload) scraper.DocumentStats {
	return scraper.DocumentStats{}
}

type stubStore struct{}

func (stubStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (stubStore) Save(context.Context, *scraper.CasePayload) (scraper.UploadStats, error) {
	return scraper.UploadStats{}, nil
}

func TestDispatcherDrainsWorklist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	collector := stats.NewCollector("run-test")
	queue := queuememory.NewQueue(4)

	workers := make([]*worker.Worker, 3)
	for i := range workers {
		workers[i] = worker.New(
			stubTokens{}, stubFetcher{}, stubDocuments{}, stubStore{}, nil,
			collector, worker.Config{MaxRetries: 1, RetryBackoff: time.Millisecond}, zap.NewNop(),
		)
	}
	d := New(queue, workers)

	const cases = 10
	go func() {
		defer queue.Close()
		for i := 0; i < cases; i++ {
			if err := d.Enqueue(ctx, fmt.Sprintf("%06d", i)); err != nil {
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not finish draining the queue")
	}
	require.Equal(t, cases, collector.Snapshot().Success)
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	collector := stats.NewCollector("run-test")
	queue := queuememory.NewQueue(1)

	w := worker.New(
		stubTokens{}, stubFetcher{}, stubDocuments{}, stubStore{}, nil,
		collector, worker.Config{MaxRetries: 1, RetryBackoff: time.Millisecond}, zap.NewNop(),
	)
	d := New(queue, []*worker.Worker{w})

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}
