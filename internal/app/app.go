// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the scrape command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/config"
	"github.com/calcourts/portal-scraper/internal/logging"
	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/middleware"
	"github.com/calcourts/portal-scraper/internal/publisher/pubsub"
	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/storage"
	"github.com/calcourts/portal-scraper/internal/storage/postgres"
)

// App holds the shared, long-lived services for the application: the logger,
// the blob store, the case store, and the optional event publisher. It is
// initialized once at startup and fails fast if any critical service cannot
// be built.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	blobs     scraper.BlobStore
	store     scraper.CaseStore
	publisher scraper.Publisher

	caseStoreCloser func()
	blobCloser      func() error
	pubCloser       func() error
	metricsServer   *http.Server
}

// New builds an App from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	if err := a.initBlobStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initCaseStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}
	a.startMetricsServer()

	logger.Info("application services initialized",
		zap.String("database", cfg.Database.Provider),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("pubsub", cfg.PubSub.Provider),
	)
	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// CaseStore returns the persistence sink for cases.
func (a *App) CaseStore() scraper.CaseStore { return a.store }

// Publisher returns the case-saved event publisher, or nil when disabled.
func (a *App) Publisher() scraper.Publisher { return a.publisher }

func (a *App) initBlobStore(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "gcs":
		store, err := storage.NewGCSStore(ctx, a.cfg.Storage.Bucket, a.cfg.Storage.Prefix, a.logger)
		if err != nil {
			return fmt.Errorf("initialize gcs storage: %w", err)
		}
		a.logger.Info("using gcs blob store", zap.String("bucket", a.cfg.Storage.Bucket))
		a.blobs = store
		a.blobCloser = store.Close
	case "memory":
		a.blobs = storage.NewMemoryStore()
	case "noop":
		a.logger.Info("using noop blob store; document bytes will be discarded")
		a.blobs = storage.NoOpStore{}
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initCaseStore(ctx context.Context) error {
	switch a.cfg.Database.Provider {
	case "postgres":
		a.logger.Info("connecting to postgres")
		store, err := postgres.NewCaseStore(ctx, postgres.CaseStoreConfig{
			DSN:              a.cfg.Database.DSN,
			MaxConns:         a.cfg.Database.MaxConns,
			MinConns:         a.cfg.Database.MinConns,
			UploadRetries:    a.cfg.Database.UploadRetries,
			UploadRetryDelay: a.cfg.Database.UploadRetryDelay,
		}, a.blobs, a.logger)
		if err != nil {
			return fmt.Errorf("initialize case store: %w", err)
		}
		a.store = store
		a.caseStoreCloser = store.Close
	case "noop":
		a.logger.Info("using noop case store; cases will be discarded")
		a.store = storage.NoOpCaseStore{}
	default:
		return fmt.Errorf("unknown database provider: %s", a.cfg.Database.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	switch a.cfg.PubSub.Provider {
	case "pubsub":
		a.logger.Info("connecting to pubsub", zap.String("topic", a.cfg.PubSub.TopicName))
		pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName, a.logger)
		if err != nil {
			return fmt.Errorf("initialize publisher: %w", err)
		}
		a.publisher = pub
		a.pubCloser = pub.Close
	case "noop":
		a.publisher = nil
	default:
		return fmt.Errorf("unknown pubsub provider: %s", a.cfg.PubSub.Provider)
	}
	return nil
}

func (a *App) startMetricsServer() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server listening", zap.Int("port", a.cfg.Metrics.Port))
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if a.caseStoreCloser != nil {
		a.caseStoreCloser()
	}
	if a.blobCloser != nil {
		if err := a.blobCloser(); err != nil {
			a.logger.Warn("close blob store", zap.Error(err))
		}
	}
	if a.pubCloser != nil {
		if err := a.pubCloser(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	// Best-effort flush; stderr sync errors are expected on some platforms.
	_ = a.logger.Sync()
}
