package scraper

import "context"

// CaptchaSolver produces an opaque captcha solution on demand.
type CaptchaSolver interface {
	Solve(ctx context.Context) (string, error)
}

// TokenExchanger trades one captcha solution for one session token.
type TokenExchanger interface {
	Exchange(ctx context.Context, solution string) (string, error)
}

// TokenSource exposes a thread-safe read of the current session token.
// Returns "" before the manager has obtained its initial token.
type TokenSource interface {
	Token() string
}

// CaseFetcher retrieves the structured payload for one case id.
// A logical "not found" (portal result code != 0) is reported as ErrNotFound.
type CaseFetcher interface {
	FetchCase(ctx context.Context, caseID, token string) (*CasePayload, error)
}

// DocumentFetcher retrieves the base64 content of one document.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, documentID string) (string, error)
}

// DocumentProcessor downloads and attaches every document referenced by a payload.
type DocumentProcessor interface {
	Process(ctx context.Context, payload *CasePayload) DocumentStats
}

// CaseStore is the persistence sink for fully assembled cases.
type CaseStore interface {
	Exists(ctx context.Context, caseNumber string) (bool, error)
	Save(ctx context.Context, payload *CasePayload) (UploadStats, error)
}

// BlobStore writes raw document bytes and is consumed by the case store.
type BlobStore interface {
	Save(ctx context.Context, objectName, contentType string, data []byte) error
}

// Publisher pushes case-saved events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Queue provides enqueue/dequeue semantics for case ids. Dequeue returns
// ErrQueueClosed once the queue is closed and drained, which is how the case
// pool learns the worklist is finished.
type Queue interface {
	Enqueue(ctx context.Context, caseID string) error
	Dequeue(ctx context.Context) (string, error)
}
