// Package postgres provides the Postgres-backed persistence sink for cases.
package postgres

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/scraper"
)

var documentNameCleaner = regexp.MustCompile(`[(),"']+`)

// CaseStoreConfig controls the Postgres connection pool and upload retries.
type CaseStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// UploadRetries bounds blob-store upload attempts per document.
	UploadRetries int
	// UploadRetryDelay grows linearly with the attempt number.
	UploadRetryDelay time.Duration
}

func (c CaseStoreConfig) withDefaults() CaseStoreConfig {
	if c.UploadRetries <= 0 {
		c.UploadRetries = 3
	}
	if c.UploadRetryDelay <= 0 {
		c.UploadRetryDelay = time.Second
	}
	return c
}

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// CaseStore persists assembled cases into Postgres and uploads attached
// document bytes to the blob store.
type CaseStore struct {
	pool   pgxIface
	blobs  scraper.BlobStore
	cfg    CaseStoreConfig
	logger *zap.Logger
}

// NewCaseStore connects a pgx pool using the provided config.
func NewCaseStore(ctx context.Context, cfg CaseStoreConfig, blobs scraper.BlobStore, logger *zap.Logger) (*CaseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CaseStore{
		pool:   pool,
		blobs:  blobs,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}, nil
}

// NewCaseStoreWithPool constructs a store from an existing pool (primarily
// for testing with pgxmock).
func NewCaseStoreWithPool(pool pgxIface, cfg CaseStoreConfig, blobs scraper.BlobStore, logger *zap.Logger) (*CaseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CaseStore{
		pool:   pool,
		blobs:  blobs,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}, nil
}

// Close releases the underlying pool resources.
func (s *CaseStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a case with the given number is already persisted.
func (s *CaseStore) Exists(ctx context.Context, caseNumber string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cases WHERE case_number = $1)`,
		caseNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("case exists check: %w", err)
	}
	return exists, nil
}

// Save upserts the case row, replaces its child rows, and uploads attached
// document bytes. The returned UploadStats covers only documents that carried
// content; a failed child insert or upload is counted, logged, and never
// fails the case.
func (s *CaseStore) Save(ctx context.Context, payload *scraper.CasePayload) (scraper.UploadStats, error) {
	if payload == nil || payload.CaseNumber == "" {
		return scraper.UploadStats{}, fmt.Errorf("payload missing case number")
	}

	if err := s.upsertCase(ctx, payload); err != nil {
		return scraper.UploadStats{}, err
	}
	if err := s.replaceParties(ctx, payload); err != nil {
		return scraper.UploadStats{}, err
	}
	if err := s.replaceAttorneys(ctx, payload); err != nil {
		return scraper.UploadStats{}, err
	}
	if err := s.replaceHearings(ctx, payload); err != nil {
		return scraper.UploadStats{}, err
	}
	return s.replaceDocuments(ctx, payload)
}

func (s *CaseStore) upsertCase(ctx context.Context, payload *scraper.CasePayload) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO cases (case_number, type, style, file_date, status, court_location)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (case_number) DO UPDATE SET
	type = EXCLUDED.type,
	style = EXCLUDED.style,
	file_date = EXCLUDED.file_date,
	status = EXCLUDED.status,
	court_location = EXCLUDED.court_location`,
		payload.CaseNumber,
		payload.Type,
		payload.Style,
		payload.FileDate,
		payload.Status,
		payload.CourtLocation,
	)
	if err != nil {
		return fmt.Errorf("upsert case %s: %w", payload.CaseNumber, err)
	}
	return nil
}

func (s *CaseStore) replaceParties(ctx context.Context, payload *scraper.CasePayload) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM parties WHERE case_number = $1`, payload.CaseNumber); err != nil {
		return fmt.Errorf("delete parties for %s: %w", payload.CaseNumber, err)
	}
	for _, p := range payload.Parties {
		_, err := s.pool.Exec(ctx, `
INSERT INTO parties (case_number, type, first_name, middle_name, last_name, nick_name, business_name, full_name, is_defendant)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			payload.CaseNumber, p.Type, p.FirstName, p.MiddleName, p.LastName,
			p.NickName, p.BusinessName, p.FullName, p.IsDefendant,
		)
		if err != nil {
			return fmt.Errorf("insert party for %s: %w", payload.CaseNumber, err)
		}
	}
	return nil
}

func (s *CaseStore) replaceAttorneys(ctx context.Context, payload *scraper.CasePayload) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM attorneys WHERE case_number = $1`, payload.CaseNumber); err != nil {
		return fmt.Errorf("delete attorneys for %s: %w", payload.CaseNumber, err)
	}
	for _, a := range payload.Attorneys {
		_, err := s.pool.Exec(ctx, `
INSERT INTO attorneys (case_number, first_name, middle_name, last_name, representing, bar_number, is_lead)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			payload.CaseNumber, a.FirstName, a.MiddleName, a.LastName,
			a.Representing, a.BarNumber, a.IsLead,
		)
		if err != nil {
			return fmt.Errorf("insert attorney for %s: %w", payload.CaseNumber, err)
		}
	}
	return nil
}

func (s *CaseStore) replaceHearings(ctx context.Context, payload *scraper.CasePayload) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM hearings WHERE case_number = $1`, payload.CaseNumber); err != nil {
		return fmt.Errorf("delete hearings for %s: %w", payload.CaseNumber, err)
	}
	for _, h := range payload.Hearings {
		_, err := s.pool.Exec(ctx, `
INSERT INTO hearings (case_number, hearing_id, calendar, type, date, time, hearing_result)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			payload.CaseNumber, h.HearingID, h.Calendar, h.Type, h.Date, h.Time, h.HearingResult,
		)
		if err != nil {
			return fmt.Errorf("insert hearing for %s: %w", payload.CaseNumber, err)
		}
	}
	return nil
}

func (s *CaseStore) replaceDocuments(ctx context.Context, payload *scraper.CasePayload) (scraper.UploadStats, error) {
	docs := collectDocuments(payload)
	if len(docs) == 0 {
		return scraper.UploadStats{}, nil
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE case_number = $1`, payload.CaseNumber); err != nil {
		return scraper.UploadStats{}, fmt.Errorf("delete documents for %s: %w", payload.CaseNumber, err)
	}

	var uploads scraper.UploadStats
	for _, doc := range docs {
		cleanName := CleanDocumentName(doc.DocumentName)
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO documents (case_number, document_name) VALUES ($1, $2)`,
			payload.CaseNumber, cleanName,
		); err != nil {
			s.logger.Warn("insert document row failed",
				zap.String("case_number", payload.CaseNumber),
				zap.String("document_name", cleanName),
				zap.Error(err),
			)
			if doc.ContentBase64 != "" {
				uploads.Failed++
				metrics.DocumentUpload("failed")
			}
			continue
		}
		if doc.ContentBase64 == "" {
			continue
		}
		if err := s.uploadDocument(ctx, payload.CaseNumber, cleanName, doc.ContentBase64); err != nil {
			s.logger.Warn("document upload failed",
				zap.String("case_number", payload.CaseNumber),
				zap.String("document_name", cleanName),
				zap.Error(err),
			)
			uploads.Failed++
			metrics.DocumentUpload("failed")
			continue
		}
		uploads.Uploaded++
		metrics.DocumentUpload("ok")
	}
	return uploads, nil
}

// uploadDocument decodes the attached base64 bytes and writes them to the
// blob store, retrying with a linearly growing delay.
func (s *CaseStore) uploadDocument(ctx context.Context, caseNumber, documentName, contentBase64 string) error {
	data, err := base64.StdEncoding.DecodeString(contentBase64)
	if err != nil {
		return fmt.Errorf("decode document content: %w", err)
	}
	objectName := caseNumber + "/" + documentName

	var lastErr error
	for attempt := 1; attempt <= s.cfg.UploadRetries; attempt++ {
		lastErr = s.blobs.Save(ctx, objectName, "application/pdf", data)
		if lastErr == nil {
			return nil
		}
		if attempt < s.cfg.UploadRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.UploadRetryDelay * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("upload %s after %d attempts: %w", objectName, s.cfg.UploadRetries, lastErr)
}

// collectDocuments gathers every named document reference from events and
// hearings, in payload order.
func collectDocuments(payload *scraper.CasePayload) []scraper.DocumentRef {
	var docs []scraper.DocumentRef
	for _, event := range payload.Events {
		for _, doc := range event.Documents {
			if doc.DocumentID != "" && doc.DocumentName != "" {
				docs = append(docs, doc)
			}
		}
	}
	for _, hearing := range payload.Hearings {
		for _, doc := range hearing.Documents {
			if doc.DocumentID != "" && doc.DocumentName != "" {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

// CleanDocumentName normalizes a display name into a storable file name:
// punctuation stripped, spaces dashed, .pdf suffix enforced.
func CleanDocumentName(name string) string {
	name = documentNameCleaner.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "-")
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
