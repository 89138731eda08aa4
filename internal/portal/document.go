package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// documentIDDecoder restores the three reserved base64 characters that the
// portal percent-encodes inside document ids.
var documentIDDecoder = strings.NewReplacer("%3D", "=", "%2B", "+", "%2F", "/")

// DocumentClient fetches document content from the portal.
type DocumentClient struct {
	cfg    ClientConfig
	client *http.Client
	logger *zap.Logger
}

// NewDocumentClient constructs a DocumentClient.
func NewDocumentClient(cfg ClientConfig, logger *zap.Logger) *DocumentClient {
	cfg = cfg.withDefaults()
	return &DocumentClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchDocument retrieves the base64 content of one document. An empty body
// in a successful response is reported as scraper.ErrNotFound.
func (d *DocumentClient) FetchDocument(ctx context.Context, documentID string) (string, error) {
	if err := d.cfg.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	decoded := documentIDDecoder.Replace(documentID)

	endpoint := fmt.Sprintf("%s/api/doc/base64/doc?docId=%s", d.cfg.BaseURL, url.QueryEscape(decoded))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build document request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("document request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document request failed: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Bytes string `json:"bytes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode document response: %w", err)
	}
	if envelope.Data.Bytes == "" {
		return "", fmt.Errorf("document %s: empty content: %w", documentID, scraper.ErrNotFound)
	}
	return envelope.Data.Bytes, nil
}
