package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

func TestCollectorConcurrentCounters(t *testing.T) {
	t.Parallel()
	c := NewCollector("run-abc")
	c.SetTotal(300)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.CaseSucceeded()
		}()
		go func() {
			defer wg.Done()
			c.CaseSkipped()
		}()
		go func() {
			defer wg.Done()
			c.CaseFailed("bad-case")
			c.AddDocuments(scraper.DocumentStats{Total: 2, Downloaded: 1, Failed: 1})
			c.AddUploads(scraper.UploadStats{Uploaded: 1, Failed: 1})
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	require.Equal(t, 300, s.Total)
	require.Equal(t, 100, s.Success)
	require.Equal(t, 100, s.Skipped)
	require.Equal(t, 100, s.Failed)
	require.Equal(t, s.Total, s.Success+s.Skipped+s.Failed)
	require.Equal(t, 200, s.DocumentsTotal)
	require.Equal(t, 100, s.DocumentsDownloaded)
	require.Equal(t, 100, s.DocumentsFailedDownload)
	require.Equal(t, 100, s.DocumentsUploaded)
	require.Equal(t, 100, s.DocumentsFailedUpload)
	require.Len(t, s.FailedCases, 100)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	c := NewCollector("run-abc")
	c.CaseFailed("case-1")

	s := c.Snapshot()
	s.FailedCases[0] = "mutated"
	require.Equal(t, []string{"case-1"}, c.Snapshot().FailedCases)
}

func TestSummaryString(t *testing.T) {
	t.Parallel()
	c := NewCollector("run-xyz")
	c.SetTotal(3)
	c.CaseSucceeded()
	c.CaseSkipped()
	c.CaseFailed("24CV000999")
	c.AddDocuments(scraper.DocumentStats{Total: 4, Downloaded: 3, Failed: 1})
	c.AddUploads(scraper.UploadStats{Uploaded: 3})

	out := c.Snapshot().String()
	require.Contains(t, out, "run-xyz")
	require.Contains(t, out, "total=3 success=1 skipped=1 failed=1")
	require.Contains(t, out, "total=4 downloaded=3 failed=1 uploaded=3 upload_failed=0")
	require.Contains(t, out, "24CV000999")
}

func TestSummaryStringOmitsEmptyFailureList(t *testing.T) {
	t.Parallel()
	c := NewCollector("run-clean")
	c.SetTotal(1)
	c.CaseSucceeded()

	out := c.Snapshot().String()
	require.NotContains(t, out, "Failed case ids")
}
