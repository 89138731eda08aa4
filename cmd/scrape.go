package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/dispatcher"
	"github.com/calcourts/portal-scraper/internal/id/uuid"
	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/pipeline"
	"github.com/calcourts/portal-scraper/internal/policy/ratelimit"
	"github.com/calcourts/portal-scraper/internal/portal"
	memqueue "github.com/calcourts/portal-scraper/internal/queue/memory"
	"github.com/calcourts/portal-scraper/internal/scraper"
	"github.com/calcourts/portal-scraper/internal/stats"
	"github.com/calcourts/portal-scraper/internal/token"
	"github.com/calcourts/portal-scraper/internal/worker"
)

var worklistPath string

// newScrapeCmd creates and configures the 'scrape' subcommand. It drives a
// full bulk run: token manager startup, worker pool fan-out over the worklist,
// and the final run summary.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes every case id in the worklist",
		Long: `Reads a worklist of case ids, obtains a session token from the
portal, and processes each case through the fetch, document download, and
persistence pipeline with a bounded worker pool. A summary of the run is
printed when the worklist is drained.`,

		RunE: runScrapeCommand,
	}
	cmd.Flags().StringVar(&worklistPath, "worklist", "", "path to the case id worklist file (one id per line)")
	_ = cmd.MarkFlagRequired("worklist")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ids, err := scraper.LoadWorklist(worklistPath)
	if err != nil {
		return fmt.Errorf("load worklist: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("worklist %s contains no case ids", worklistPath)
	}

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	collector := stats.NewCollector(runID)
	collector.SetTotal(len(ids))
	logger.Info("scrape run starting",
		zap.String("run_id", runID),
		zap.Int("cases", len(ids)),
		zap.Int("case_workers", cfg.Scraper.CaseWorkers),
		zap.Int("document_workers", cfg.Scraper.DocumentWorkers),
	)

	solver := portal.NewCapsolver(portal.CapsolverConfig{
		Endpoint:     cfg.Captcha.Endpoint,
		APIKey:       cfg.Captcha.APIKey,
		SiteKey:      cfg.Captcha.SiteKey,
		PageURL:      cfg.Captcha.PageURL,
		Timeout:      cfg.Captcha.Timeout,
		PollInterval: cfg.Captcha.PollInterval,
		MaxPolls:     cfg.Captcha.MaxPolls,
	}, logger)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Portal.RequestsPerSecond,
		Burst:             cfg.Portal.Burst,
	})
	portalCfg := portal.ClientConfig{
		BaseURL:   cfg.Portal.BaseURL,
		Timeout:   cfg.Portal.Timeout,
		UserAgent: cfg.Portal.UserAgent,
		Limiter:   limiter,
	}
	exchanger := portal.NewTokenClient(portalCfg, logger)

	caseCfg := portalCfg
	if cfg.Portal.UseProxy {
		caseCfg.ProxyURL = cfg.Portal.ProxyURL
	}
	caseClient, err := portal.NewCaseClient(caseCfg, logger)
	if err != nil {
		return fmt.Errorf("build case client: %w", err)
	}
	documentClient := portal.NewDocumentClient(portalCfg, logger)

	manager := token.NewManager(solver, exchanger, token.Config{
		BufferSize:          cfg.Captcha.BufferSize,
		RefreshInterval:     cfg.Token.RefreshInterval,
		TakeTimeout:         cfg.Token.TakeTimeout,
		SolveFailureBackoff: cfg.Token.SolveFailureBackoff,
		BufferFullPoll:      cfg.Token.BufferFullPoll,
		JoinTimeout:         cfg.Token.JoinTimeout,
	}, logger)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start token manager: %w", err)
	}
	defer manager.Stop()
	go reportBufferDepth(ctx, manager)

	documents := pipeline.New(documentClient, pipeline.Config{
		Workers:    cfg.Scraper.DocumentWorkers,
		MaxRetries: cfg.Scraper.MaxRetries,
	}, logger)

	workers := make([]*worker.Worker, 0, cfg.Scraper.CaseWorkers)
	for i := 0; i < cfg.Scraper.CaseWorkers; i++ {
		workers = append(workers, worker.New(
			manager,
			caseClient,
			documents,
			appInstance.CaseStore(),
			appInstance.Publisher(),
			collector,
			worker.Config{
				MaxRetries:       cfg.Scraper.MaxRetries,
				TokenWaitBackoff: cfg.Scraper.TokenWaitBackoff,
				RetryBackoff:     cfg.Scraper.RetryBackoff,
			},
			logger.With(zap.Int("worker", i+1)),
		))
	}

	queue := memqueue.NewQueue(cfg.Scraper.QueueDepth)
	pool := dispatcher.New(queue, workers)

	// The feed is finite: once every id is enqueued the queue is closed and
	// workers exit as they drain it.
	go func() {
		defer queue.Close()
		for _, id := range ids {
			if err := pool.Enqueue(ctx, id); err != nil {
				logger.Warn("worklist feed interrupted", zap.Error(err))
				return
			}
		}
	}()

	pool.Run(ctx)
	manager.Stop()

	summary := collector.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	logger.Info("scrape run finished",
		zap.String("run_id", runID),
		zap.Int("success", summary.Success),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

// reportBufferDepth samples the captcha buffer into the Prometheus gauge until
// the run ends.
func reportBufferDepth(ctx context.Context, manager *token.Manager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetCaptchaBuffered(manager.Buffer().Len())
		}
	}
}
