// Package worker implements the per-case scrape state machine.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/stats"
)

// Config controls Worker retry behavior.
type Config struct {
	// MaxRetries is the attempt budget per case.
	MaxRetries int
	// TokenWaitBackoff is the delay before re-checking for a session token.
	TokenWaitBackoff time.Duration
	// RetryBackoff is the delay between attempts after a fetch, save, or
	// unexpected failure.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TokenWaitBackoff <= 0 {
		c.TokenWaitBackoff = 5 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return c
}

// Worker consumes case ids from the queue and runs each one through the
// fetch → exists-check → document pipeline → save state machine.
type Worker struct {
	tokens    scraper.TokenSource
	cases     scraper.CaseFetcher
	documents scraper.DocumentProcessor
	store     scraper.CaseStore
	publisher scraper.Publisher
	stats     *stats.Collector
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. publisher may be nil when notifications are disabled.
func New(
	tokens scraper.TokenSource,
	cases scraper.CaseFetcher,
	documents scraper.DocumentProcessor,
	store scraper.CaseStore,
	publisher scraper.Publisher,
	collector *stats.Collector,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		tokens:    tokens,
		cases:     cases,
		documents: documents,
		store:     store,
		publisher: publisher,
		stats:     collector,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Run blocks, consuming case ids from queue until it is closed and drained
// or the context finishes. One case's failure never affects another case.
func (w *Worker) Run(ctx context.Context, queue scraper.Queue) {
	for {
		caseID, err := queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, scraper.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.ProcessCase(ctx, caseID)
	}
}

type attemptKind int

const (
	attemptDone attemptKind = iota
	attemptRetry
)

type attemptResult struct {
	kind    attemptKind
	backoff time.Duration
	reason  scraper.FailureReason
	err     error
}

// ProcessCase runs the retry loop for one case id. The outcome is recorded in
// run statistics exactly once.
func (w *Worker) ProcessCase(ctx context.Context, caseID string) {
	metrics.WorkerStarted()
	defer metrics.WorkerFinished()

	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		result := w.runAttempt(ctx, caseID)
		if result.kind == attemptDone {
			return
		}
		if attempt == w.cfg.MaxRetries {
			w.fail(caseID, result.reason, result.err)
			return
		}
		w.logger.Warn("case attempt failed, retrying",
			zap.String("case_id", caseID),
			zap.Int("attempt", attempt),
			zap.String("reason", string(result.reason)),
			zap.Error(result.err),
		)
		if !sleep(ctx, result.backoff) {
			w.fail(caseID, result.reason, ctx.Err())
			return
		}
	}
}

// runAttempt executes steps 1-7 of the case state machine once. A panic
// anywhere inside the attempt is recovered and surfaced as a retryable
// failure so one bad payload cannot take down the pool.
func (w *Worker) runAttempt(ctx context.Context, caseID string) (result attemptResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic during case attempt",
				zap.String("case_id", caseID),
				zap.Any("panic", r),
			)
			result = attemptResult{
				kind:    attemptRetry,
				backoff: w.cfg.RetryBackoff,
				reason:  scraper.FailurePanic,
			}
		}
	}()

	token := w.tokens.Token()
	if token == "" {
		return attemptResult{
			kind:    attemptRetry,
			backoff: w.cfg.TokenWaitBackoff,
			reason:  scraper.FailureNoToken,
		}
	}

	payload, err := w.cases.FetchCase(ctx, caseID, token)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			w.fail(caseID, scraper.FailureNotFound, err)
			return attemptResult{kind: attemptDone}
		}
		return attemptResult{
			kind:    attemptRetry,
			backoff: w.cfg.RetryBackoff,
			reason:  scraper.FailureFetchExhausted,
			err:     err,
		}
	}
	if payload == nil {
		return attemptResult{
			kind:    attemptRetry,
			backoff: w.cfg.RetryBackoff,
			reason:  scraper.FailureFetchExhausted,
		}
	}

	if payload.CaseNumber == "" {
		w.fail(caseID, scraper.FailureMissingCaseNumber, nil)
		return attemptResult{kind: attemptDone}
	}

	exists, err := w.store.Exists(ctx, payload.CaseNumber)
	if err != nil {
		return attemptResult{
			kind:    attemptRetry,
			backoff: w.cfg.RetryBackoff,
			reason:  scraper.FailureSaveExhausted,
			err:     err,
		}
	}
	if exists {
		w.logger.Info("case already persisted, skipping",
			zap.String("case_id", caseID),
			zap.String("case_number", payload.CaseNumber),
		)
		w.stats.CaseSkipped()
		metrics.CaseProcessed(string(scraper.OutcomeSkipped))
		return attemptResult{kind: attemptDone}
	}

	docStats := w.documents.Process(ctx, payload)
	w.stats.AddDocuments(docStats)

	uploadStats, err := w.store.Save(ctx, payload)
	w.stats.AddUploads(uploadStats)
	if err != nil {
		return attemptResult{
			kind:    attemptRetry,
			backoff: w.cfg.RetryBackoff,
			reason:  scraper.FailureSaveExhausted,
			err:     err,
		}
	}

	w.stats.CaseSucceeded()
	metrics.CaseProcessed(string(scraper.OutcomeSuccess))
	w.logger.Info("case persisted",
		zap.String("case_id", caseID),
		zap.String("case_number", payload.CaseNumber),
		zap.Int("documents", docStats.Total),
	)
	w.publishSaved(ctx, caseID, payload, docStats)
	return attemptResult{kind: attemptDone}
}

func (w *Worker) fail(caseID string, reason scraper.FailureReason, err error) {
	w.logger.Error("case failed",
		zap.String("case_id", caseID),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
	w.stats.CaseFailed(caseID)
	metrics.CaseProcessed(string(scraper.OutcomeFailed))
}

// publishSaved emits a fire-and-forget case-saved event.
func (w *Worker) publishSaved(ctx context.Context, caseID string, payload *scraper.CasePayload, docStats scraper.DocumentStats) {
	if w.publisher == nil {
		return
	}
	event := map[string]any{
		"case_id":     caseID,
		"case_number": payload.CaseNumber,
		"documents":   docStats.Total,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Warn("case-saved publish failed",
			zap.String("case_number", payload.CaseNumber),
			zap.Error(err),
		)
	}
}

// sleep waits for d unless the context ends first; reports false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
