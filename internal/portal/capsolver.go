package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultCapsolverEndpoint = "https://api.capsolver.com"

// CapsolverConfig configures the captcha solving provider.
type CapsolverConfig struct {
	Endpoint string
	APIKey   string
	SiteKey  string
	// PageURL is the portal page carrying the reCAPTCHA widget.
	PageURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

func (c CapsolverConfig) withDefaults() CapsolverConfig {
	if c.Endpoint == "" {
		c.Endpoint = defaultCapsolverEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 30
	}
	return c
}

// Capsolver solves the portal's reCAPTCHA through the provider's task API:
// one createTask call, then getTaskResult polling until the solution is ready.
type Capsolver struct {
	cfg    CapsolverConfig
	client *http.Client
	logger *zap.Logger
}

// NewCapsolver constructs a Capsolver client.
func NewCapsolver(cfg CapsolverConfig, logger *zap.Logger) *Capsolver {
	cfg = cfg.withDefaults()
	return &Capsolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type capsolverTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type capsolverResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           string `json:"taskId"`
	Status           string `json:"status"`
	Solution         struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

// Solve submits a solving task and polls until the provider returns a
// solution. The returned string is the opaque reCAPTCHA response token.
func (s *Capsolver) Solve(ctx context.Context) (string, error) {
	created, err := s.post(ctx, "/createTask", map[string]any{
		"clientKey": s.cfg.APIKey,
		"task": capsolverTask{
			Type:       "ReCaptchaV2TaskProxyLess",
			WebsiteURL: s.cfg.PageURL,
			WebsiteKey: s.cfg.SiteKey,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create solving task: %w", err)
	}
	if created.ErrorID != 0 {
		return "", fmt.Errorf("create solving task: %s: %s", created.ErrorCode, created.ErrorDescription)
	}

	for poll := 0; poll < s.cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("captcha solve canceled: %w", ctx.Err())
		case <-time.After(s.cfg.PollInterval):
		}

		result, err := s.post(ctx, "/getTaskResult", map[string]any{
			"clientKey": s.cfg.APIKey,
			"taskId":    created.TaskID,
		})
		if err != nil {
			return "", fmt.Errorf("poll solving task: %w", err)
		}
		if result.ErrorID != 0 {
			return "", fmt.Errorf("solving task failed: %s: %s", result.ErrorCode, result.ErrorDescription)
		}
		if result.Status == "ready" {
			if result.Solution.GRecaptchaResponse == "" {
				return "", fmt.Errorf("solving task ready but solution empty")
			}
			s.logger.Debug("captcha solved", zap.String("task_id", created.TaskID))
			return result.Solution.GRecaptchaResponse, nil
		}
	}
	return "", fmt.Errorf("solving task %s not ready after %d polls", created.TaskID, s.cfg.MaxPolls)
}

func (s *Capsolver) post(ctx context.Context, path string, body any) (capsolverResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return capsolverResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return capsolverResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return capsolverResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return capsolverResponse{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var decoded capsolverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return capsolverResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}
