// Package stats aggregates thread-safe run statistics for a scrape run.
package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// Collector accumulates case and document counters across all case workers.
// Every mutation happens under one mutex so the counters can never tear.
type Collector struct {
	mu sync.Mutex

	runID   string
	started time.Time

	total   int
	success int
	failed  int
	skipped int

	docsTotal          int
	docsDownloaded     int
	docsFailedDownload int
	docsUploaded       int
	docsFailedUpload   int

	failedCases []string
}

// NewCollector constructs a Collector stamped with a run id.
func NewCollector(runID string) *Collector {
	return &Collector{
		runID:   runID,
		started: time.Now(),
	}
}

// SetTotal records the worklist size before the pool starts.
func (c *Collector) SetTotal(n int) {
	c.mu.Lock()
	c.total = n
	c.mu.Unlock()
}

// CaseSucceeded records one successfully persisted case.
func (c *Collector) CaseSucceeded() {
	c.mu.Lock()
	c.success++
	c.mu.Unlock()
}

// CaseSkipped records one case that already existed in the sink.
func (c *Collector) CaseSkipped() {
	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

// CaseFailed records one terminally failed case and remembers its id.
func (c *Collector) CaseFailed(caseID string) {
	c.mu.Lock()
	c.failed++
	c.failedCases = append(c.failedCases, caseID)
	c.mu.Unlock()
}

// AddDocuments folds one document-pipeline result into the run counters.
func (c *Collector) AddDocuments(ds scraper.DocumentStats) {
	c.mu.Lock()
	c.docsTotal += ds.Total
	c.docsDownloaded += ds.Downloaded
	c.docsFailedDownload += ds.Failed
	c.mu.Unlock()
}

// AddUploads folds one persistence result into the run counters.
func (c *Collector) AddUploads(us scraper.UploadStats) {
	c.mu.Lock()
	c.docsUploaded += us.Uploaded
	c.docsFailedUpload += us.Failed
	c.mu.Unlock()
}

// Summary is an immutable snapshot of the collector.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Total   int
	Success int
	Failed  int
	Skipped int

	DocumentsTotal          int
	DocumentsDownloaded     int
	DocumentsFailedDownload int
	DocumentsUploaded       int
	DocumentsFailedUpload   int

	FailedCases []string
}

// Snapshot returns a consistent copy of all counters.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		RunID:                   c.runID,
		Started:                 c.started,
		Finished:                time.Now(),
		Total:                   c.total,
		Success:                 c.success,
		Failed:                  c.failed,
		Skipped:                 c.skipped,
		DocumentsTotal:          c.docsTotal,
		DocumentsDownloaded:     c.docsDownloaded,
		DocumentsFailedDownload: c.docsFailedDownload,
		DocumentsUploaded:       c.docsUploaded,
		DocumentsFailedUpload:   c.docsFailedUpload,
		FailedCases:             append([]string(nil), c.failedCases...),
	}
}

// String renders the human-readable run report.
func (s Summary) String() string {
	duration := s.Finished.Sub(s.Started).Round(time.Second)

	var b strings.Builder
	rule := strings.Repeat("=", 72)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Scrape Summary (run %s)\n", s.RunID)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Start:    %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "End:      %s\n", s.Finished.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", duration)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 72))
	fmt.Fprintf(&b, "Cases:     total=%d success=%d skipped=%d failed=%d\n",
		s.Total, s.Success, s.Skipped, s.Failed)
	fmt.Fprintf(&b, "Documents: total=%d downloaded=%d failed=%d uploaded=%d upload_failed=%d\n",
		s.DocumentsTotal, s.DocumentsDownloaded, s.DocumentsFailedDownload,
		s.DocumentsUploaded, s.DocumentsFailedUpload)
	if len(s.FailedCases) > 0 {
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 72))
		fmt.Fprintf(&b, "Failed case ids:\n")
		for _, id := range s.FailedCases {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
	}
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}
