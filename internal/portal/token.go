package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// TokenClient exchanges a captcha solution for a session token.
type TokenClient struct {
	cfg    ClientConfig
	client *http.Client
	logger *zap.Logger
}

// NewTokenClient constructs a TokenClient. Token exchanges never use the
// proxy; only case fetches do.
func NewTokenClient(cfg ClientConfig, logger *zap.Logger) *TokenClient {
	cfg = cfg.withDefaults()
	return &TokenClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Exchange trades one captcha solution for one session token. The solution is
// single-use; a failed exchange reports an error and the caller decides
// whether to requeue it.
func (t *TokenClient) Exchange(ctx context.Context, solution string) (string, error) {
	if err := t.cfg.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+"/api/case/token", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("recaptcha", solution)
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var decoded struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if decoded.Token == "" {
		return "", fmt.Errorf("token absent from response")
	}
	t.logger.Debug("session token retrieved")
	return decoded.Token, nil
}
