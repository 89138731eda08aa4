// Package pipeline downloads and attaches the documents referenced by a case payload.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/scraper"
)

// Config controls document fan-out behavior.
type Config struct {
	Workers    int
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Documents downloads every document referenced by a payload with bounded
// parallelism and per-document retry, then attaches the content in place.
type Documents struct {
	fetcher scraper.DocumentFetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a document pipeline.
func New(fetcher scraper.DocumentFetcher, cfg Config, logger *zap.Logger) *Documents {
	return &Documents{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Process walks the payload's events and hearings, downloads each referenced
// document, and attaches content to every occurrence of a successfully
// downloaded id. A document that exhausts its retries is left without content
// and counted as failed; it never aborts the case.
func (d *Documents) Process(ctx context.Context, payload *scraper.CasePayload) scraper.DocumentStats {
	ids := extractDocumentIDs(payload)
	if len(ids) == 0 {
		return scraper.DocumentStats{}
	}

	d.logger.Debug("downloading documents",
		zap.String("case_number", payload.CaseNumber),
		zap.Int("count", len(ids)),
	)

	contents, downloaded := d.download(ctx, ids)
	attachDocuments(payload, contents)

	stats := scraper.DocumentStats{
		Total:      len(ids),
		Downloaded: downloaded,
		Failed:     len(ids) - downloaded,
	}
	d.logger.Info("documents processed",
		zap.String("case_number", payload.CaseNumber),
		zap.Int("total", stats.Total),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("failed", stats.Failed),
	)
	return stats
}

// download fans the ids out over a bounded worker group. Duplicate ids stay
// as separate tasks and each counts toward the download total; the result map
// is keyed by id so every occurrence ends up identical.
func (d *Documents) download(ctx context.Context, ids []string) (map[string]string, int) {
	var (
		mu         sync.Mutex
		downloaded int
	)
	contents := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			content, ok := d.fetchWithRetry(gctx, id)
			if !ok {
				metrics.DocumentDownload("failed")
				d.logger.Warn("document download exhausted retries", zap.String("document_id", id))
				return nil
			}
			metrics.DocumentDownload("ok")
			mu.Lock()
			contents[id] = content
			downloaded++
			mu.Unlock()
			return nil
		})
	}
	// Tasks always return nil; Wait only joins the group.
	_ = g.Wait()
	return contents, downloaded
}

func (d *Documents) fetchWithRetry(ctx context.Context, id string) (string, bool) {
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		content, err := d.fetcher.FetchDocument(ctx, id)
		if err == nil && content != "" {
			return content, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

// extractDocumentIDs collects document ids in payload order, events first then
// hearings, keeping duplicates.
func extractDocumentIDs(payload *scraper.CasePayload) []string {
	var ids []string
	for _, event := range payload.Events {
		for _, doc := range event.Documents {
			if doc.DocumentID != "" {
				ids = append(ids, doc.DocumentID)
			}
		}
	}
	for _, hearing := range payload.Hearings {
		for _, doc := range hearing.Documents {
			if doc.DocumentID != "" {
				ids = append(ids, doc.DocumentID)
			}
		}
	}
	return ids
}

// attachDocuments writes downloaded content back into every matching
// DocumentRef, under both events and hearings.
func attachDocuments(payload *scraper.CasePayload, contents map[string]string) {
	for i := range payload.Events {
		attachToRefs(payload.Events[i].Documents, contents)
	}
	for i := range payload.Hearings {
		attachToRefs(payload.Hearings[i].Documents, contents)
	}
}

func attachToRefs(refs []scraper.DocumentRef, contents map[string]string) {
	for i := range refs {
		if content, ok := contents[refs[i].DocumentID]; ok {
			refs[i].ContentBase64 = content
		}
	}
}
