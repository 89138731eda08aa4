// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Token    TokenConfig    `mapstructure:"token"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CaptchaConfig configures the solving provider and the solution buffer.
type CaptchaConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	SiteKey      string        `mapstructure:"sitekey"`
	PageURL      string        `mapstructure:"page_url"`
	Endpoint     string        `mapstructure:"endpoint"`
	BufferSize   int           `mapstructure:"buffer_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
}

// PortalConfig configures the court portal HTTP clients.
type PortalConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	UseProxy  bool          `mapstructure:"use_proxy"`
	ProxyURL  string        `mapstructure:"proxy_url"`
	// RequestsPerSecond paces all portal calls; zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TokenConfig governs the token manager's loops.
type TokenConfig struct {
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	TakeTimeout         time.Duration `mapstructure:"take_timeout"`
	SolveFailureBackoff time.Duration `mapstructure:"solve_failure_backoff"`
	BufferFullPoll      time.Duration `mapstructure:"buffer_full_poll"`
	JoinTimeout         time.Duration `mapstructure:"join_timeout"`
}

// ScraperConfig governs the case and document worker pools.
type ScraperConfig struct {
	CaseWorkers      int           `mapstructure:"case_workers"`
	DocumentWorkers  int           `mapstructure:"document_workers"`
	MaxRetries       int           `mapstructure:"max_retries"`
	TokenWaitBackoff time.Duration `mapstructure:"token_wait_backoff"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	QueueDepth       int           `mapstructure:"queue_depth"`
}

// DatabaseConfig controls access to the relational store.
type DatabaseConfig struct {
	Provider         string        `mapstructure:"provider"`
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	UploadRetries    int           `mapstructure:"upload_retries"`
	UploadRetryDelay time.Duration `mapstructure:"upload_retry_delay"`
}

// StorageConfig sets the blob store backend for document bytes.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for case-saved notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("captcha.buffer_size", 2)
	v.SetDefault("captcha.timeout", "30s")
	v.SetDefault("captcha.poll_interval", "3s")
	v.SetDefault("captcha.max_polls", 30)
	v.SetDefault("portal.timeout", "60s")
	v.SetDefault("portal.use_proxy", false)
	v.SetDefault("portal.requests_per_second", 10.0)
	v.SetDefault("portal.burst", 5)
	v.SetDefault("token.refresh_interval", "10m")
	v.SetDefault("token.take_timeout", "60s")
	v.SetDefault("token.solve_failure_backoff", "10s")
	v.SetDefault("token.buffer_full_poll", "5s")
	v.SetDefault("token.join_timeout", "5s")
	v.SetDefault("scraper.case_workers", 3)
	v.SetDefault("scraper.document_workers", 5)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.token_wait_backoff", "5s")
	v.SetDefault("scraper.retry_backoff", "2s")
	v.SetDefault("scraper.queue_depth", 64)
	v.SetDefault("database.provider", "postgres")
	v.SetDefault("database.upload_retries", 3)
	v.SetDefault("database.upload_retry_delay", "1s")
	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("storage.prefix", "documents")
	v.SetDefault("pubsub.provider", "noop")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Captcha.APIKey == "" {
		return fmt.Errorf("captcha.api_key is required")
	}
	if c.Captcha.SiteKey == "" {
		return fmt.Errorf("captcha.sitekey is required")
	}
	if c.Captcha.PageURL == "" {
		return fmt.Errorf("captcha.page_url is required")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Scraper.CaseWorkers <= 0 {
		return fmt.Errorf("scraper.case_workers must be > 0")
	}
	if c.Scraper.DocumentWorkers <= 0 {
		return fmt.Errorf("scraper.document_workers must be > 0")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Portal.UseProxy && c.Portal.ProxyURL == "" {
		return fmt.Errorf("portal.proxy_url must be set when portal.use_proxy is enabled")
	}
	switch c.Database.Provider {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown database provider: %s", c.Database.Provider)
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs provider")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.PubSub.Provider {
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required for the pubsub provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown pubsub provider: %s", c.PubSub.Provider)
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}
