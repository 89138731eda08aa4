// Package cmd defines and implements the CLI commands for the portal-scraper
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/app"
	"github.com/calcourts/portal-scraper/internal/config"
	"github.com/calcourts/portal-scraper/internal/scraper"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application container that commands use. Keeping it
// an interface lets tests inject a fake container.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	CaseStore() scraper.CaseStore
	Publisher() scraper.Publisher
}

// newApp is the application factory. It is a variable so tests can replace it
// with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal-scraper",
		Short: "A bulk case scraper for the county court portal.",
		Long: `portal-scraper walks a list of case ids against the county court
portal, persisting structured case data to the database and document PDFs to
blob storage. Session tokens are minted from pre-solved captchas and rotated
in the background for the lifetime of the run.`,

		// Runs after flags are parsed but before the subcommand's RunE; the
		// application container is built here and injected via the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment-only)")
	cmd.AddCommand(newScrapeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
