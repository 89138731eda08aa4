// Package portal implements the HTTP collaborators at the boundary of the
// scraper: captcha solving, session-token exchange, case fetch, and document
// fetch. Each call is a single request/response with a fixed timeout.
package portal

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/calcourts/portal-scraper/internal/policy/ratelimit"
)

const defaultUserAgent = "portal-scraper/1.0 (+https://github.com/calcourts/portal-scraper)"

// ClientConfig holds the knobs shared by every portal client.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// ProxyURL routes case fetches through a forward proxy when set.
	ProxyURL string
	// Limiter paces requests against the portal; nil disables pacing.
	Limiter *ratelimit.Limiter
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// newHTTPClient builds an http.Client with the configured timeout and
// optional proxy.
func newHTTPClient(cfg ClientConfig) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
	return client, nil
}
