package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/app"
	"github.com/JakeFAU/catalog-crawler/internal/config"
)

type crawlOptions struct {
	categories []string
	sinks      []string
	workers    int
}

// appOptions is extended by tests to inject collaborators.
var appOptions []app.Option

func newCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl over the configured categories",
		Long: `Paginates every configured category, claims each product slug once,
enriches it from the detail endpoint and writes canonical records. The run
summary is printed as JSON when the crawl finishes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			if err := opts.apply(&cfg); err != nil {
				return err
			}
			return runCrawl(cmd, cfg)
		},
	}
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "category slug to crawl (repeatable, overrides crawler.categories)")
	cmd.Flags().StringSliceVar(&opts.sinks, "sink", nil, "record sink kind (repeatable, overrides output.sinks)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "detail workers (overrides crawler.workers)")
	return cmd
}

func (o *crawlOptions) apply(cfg *config.Config) error {
	if len(o.categories) > 0 {
		cfg.Crawler.Categories = o.categories
	}
	if len(o.sinks) > 0 {
		cfg.Output.Sinks = o.sinks
	}
	if o.workers > 0 {
		cfg.Crawler.Workers = o.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runCrawl(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, appOptions...)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}

	_, runErr := a.Run(ctx)
	if err := a.Close(ctx); err != nil {
		a.Logger().Warn("shutdown incomplete", zap.Error(err))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.Stats()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run crawler: %w", runErr)
	}
	return nil
}
