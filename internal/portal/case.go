package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/scraper"
)

// CaseClient fetches structured case payloads from the portal.
type CaseClient struct {
	cfg    ClientConfig
	client *http.Client
	logger *zap.Logger
}

// NewCaseClient constructs a CaseClient, honoring cfg.ProxyURL when set.
func NewCaseClient(cfg ClientConfig, logger *zap.Logger) (*CaseClient, error) {
	cfg = cfg.withDefaults()
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &CaseClient{
		cfg:    cfg,
		client: client,
		logger: logger,
	}, nil
}

// caseEnvelope is the portal's response wrapper. Result zero means the
// payload is valid; anything else is a logical miss.
type caseEnvelope struct {
	Result int                 `json:"result"`
	Data   scraper.CasePayload `json:"data"`
}

// FetchCase retrieves the payload for one case id using the given session
// token. A non-zero portal result code is reported as scraper.ErrNotFound;
// transport and status failures are transient errors.
func (c *CaseClient) FetchCase(ctx context.Context, caseID, token string) (*scraper.CasePayload, error) {
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/case/%s", c.cfg.BaseURL, caseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build case request: %w", err)
	}
	req.Header.Set("case-token", token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("case request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("case request failed: status %d", resp.StatusCode)
	}

	var envelope caseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode case response: %w", err)
	}
	if envelope.Result != 0 {
		c.logger.Debug("case not found",
			zap.String("case_id", caseID),
			zap.Int("result", envelope.Result),
		)
		return nil, fmt.Errorf("case %s: result %d: %w", caseID, envelope.Result, scraper.ErrNotFound)
	}
	return &envelope.Data, nil
}
