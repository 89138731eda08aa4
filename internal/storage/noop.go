package storage

import (
	"context"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// NoOpCaseStore is a persistence sink that discards every case. Useful for
// dry runs exercising the fetch pipeline without a database.
type NoOpCaseStore struct{}

// Exists always reports false so every case flows through the pipeline.
func (NoOpCaseStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// Save discards the payload and reports nothing uploaded.
func (NoOpCaseStore) Save(_ context.Context, _ *scraper.CasePayload) (scraper.UploadStats, error) {
	return scraper.UploadStats{}, nil
}
