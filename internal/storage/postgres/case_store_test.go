package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/storage"
)

func newMockedStore(t *testing.T, blobs scraper.BlobStore, cfg CaseStoreConfig) (*CaseStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewCaseStoreWithPool(mock, cfg, blobs, zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func savedPayload() *scraper.CasePayload {
	return &scraper.CasePayload{
		CaseNumber:    "24CV000100",
		Type:          "Civil",
		Style:         "Doe vs Acme Corp",
		FileDate:      "2024-03-01",
		Status:        "Open",
		CourtLocation: "Downtown",
		Parties: []scraper.CaseParty{
			{Type: "Plaintiff", FirstName: "Jane", LastName: "Doe", FullName: "Jane Doe"},
		},
		Attorneys: []scraper.CaseAttorney{
			{FirstName: "Sam", LastName: "Counsel", Representing: "Jane Doe", BarNumber: "12345", IsLead: true},
		},
		Events: []scraper.CaseEvent{
			{
				Date:        "2024-03-01",
				Description: "Complaint Filed",
				Documents: []scraper.DocumentRef{
					{
						DocumentID:    "doc-1",
						DocumentName:  "Complaint (Filed)",
						ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
					},
				},
			},
		},
		Hearings: []scraper.CaseHearing{
			{HearingID: "h-1", Calendar: "Law and Motion", Type: "CMC", Date: "2024-06-01", Time: "09:00"},
		},
	}
}

func expectSaveStatements(mock pgxmock.PgxPoolIface, caseNumber string) {
	mock.ExpectExec("INSERT INTO cases").
		WithArgs(caseNumber, "Civil", "Doe vs Acme Corp", "2024-03-01", "Open", "Downtown").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM parties").WithArgs(caseNumber).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO parties").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM attorneys").WithArgs(caseNumber).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO attorneys").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM hearings").WithArgs(caseNumber).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO hearings").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM documents").WithArgs(caseNumber).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(caseNumber, "Complaint-Filed.pdf").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestExists(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t, storage.NoOpStore{}, CaseStoreConfig{})

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("24CV000100").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "24CV000100")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsQueryError(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t, storage.NoOpStore{}, CaseStoreConfig{})

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("24CV000100").
		WillReturnError(errors.New("connection refused"))

	_, err := store.Exists(context.Background(), "24CV000100")
	require.Error(t, err)
}

func TestSavePersistsCaseAndUploadsDocuments(t *testing.T) {
	t.Parallel()
	blobs := storage.NewMemoryStore()
	store, mock := newMockedStore(t, blobs, CaseStoreConfig{
		UploadRetries:    1,
		UploadRetryDelay: time.Millisecond,
	})

	payload := savedPayload()
	expectSaveStatements(mock, payload.CaseNumber)

	uploads, err := store.Save(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, scraper.UploadStats{Uploaded: 1, Failed: 0}, uploads)
	require.NoError(t, mock.ExpectationsWereMet())

	data, ok := blobs.Object("24CV000100/Complaint-Filed.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF-1.4"), data)
}

func TestSaveCountsFailedUploads(t *testing.T) {
	t.Parallel()
	blobs := storage.NewMemoryStore()
	blobs.Err = errors.New("bucket unavailable")
	store, mock := newMockedStore(t, blobs, CaseStoreConfig{
		UploadRetries:    2,
		UploadRetryDelay: time.Millisecond,
	})

	payload := savedPayload()
	expectSaveStatements(mock, payload.CaseNumber)

	uploads, err := store.Save(context.Background(), payload)
	require.NoError(t, err, "a failed upload must not fail the case")
	require.Equal(t, scraper.UploadStats{Uploaded: 0, Failed: 1}, uploads)
	require.Zero(t, blobs.Len())
}

func TestSaveRejectsMissingCaseNumber(t *testing.T) {
	t.Parallel()
	store, _ := newMockedStore(t, storage.NoOpStore{}, CaseStoreConfig{})

	_, err := store.Save(context.Background(), &scraper.CasePayload{})
	require.Error(t, err)
	_, err = store.Save(context.Background(), nil)
	require.Error(t, err)
}

func TestSaveStopsOnUpsertFailure(t *testing.T) {
	t.Parallel()
	store, mock := newMockedStore(t, storage.NoOpStore{}, CaseStoreConfig{})

	mock.ExpectExec("INSERT INTO cases").
		WillReturnError(errors.New("deadlock detected"))

	_, err := store.Save(context.Background(), savedPayload())
	require.Error(t, err)
}

func TestCleanDocumentName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"Complaint (Filed)", "Complaint-Filed.pdf"},
		{"Minute Order, 06/01.pdf", "Minute-Order-06/01.pdf"},
		{`Judge's "Ruling"`, "Judges-Ruling.pdf"},
		{"summons.PDF", "summons.PDF"},
		{"plain", "plain.pdf"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, CleanDocumentName(tc.in), "input %q", tc.in)
	}
}
