package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/fetcher"
	"github.com/virtual-factory/paperline/internal/scrape"
	"github.com/virtual-factory/paperline/internal/source"
)

var (
	scrapeSource  string
	scrapeQuery   string
	scrapePages   int
	scrapeWorkers int
	scrapeSources string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one paper ingestion run",
	Long:  "Walks the listing pages of a paper source, downloads and extracts each paper, and upserts 1000-word chunks into the source's table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !gatePasses(cfg.Scrape.Run, "RUN_SCRAPER", "scraper", cmd.OutOrStdout()) {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scrapeSource != "" {
			cfg.Scrape.Source = scrapeSource
		}
		if scrapeQuery != "" {
			cfg.Scrape.Query = scrapeQuery
		}
		if scrapePages > 0 {
			cfg.Scrape.Pages = scrapePages
		}
		if scrapeWorkers > 0 {
			cfg.Scrape.Workers = scrapeWorkers
		}
		if scrapeSources != "" {
			cfg.Scrape.SourcesFile = scrapeSources
		}

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		table, err := cfg.Store.TableFor(cfg.Scrape.Source)
		if err != nil {
			return err
		}

		catalog, err := source.LoadCatalog(cfg.Scrape.SourcesFile)
		if err != nil {
			return err
		}
		src, ok := catalog[cfg.Scrape.Source]
		if !ok {
			return eris.Errorf("unknown paper source %q", cfg.Scrape.Source)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx, table); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Profile:      src.Profile,
			Timeout:      time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})

		coord := scrape.New(src, f, st, table, scrape.Config{
			Query:     cfg.Scrape.Query,
			Pages:     cfg.Scrape.Pages,
			Workers:   cfg.Scrape.Workers,
			BatchSize: cfg.Scrape.BatchSize,
			Retries:   cfg.Scrape.MaxRetries,
			RetryWait: time.Duration(cfg.Scrape.RetryWaitSecs) * time.Second,
		})

		run, err := coord.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "ingestion run")
		}

		zap.L().Info("scrape finished",
			zap.String("run_id", run.ID),
			zap.Int("papers", run.PapersFound),
			zap.Int("chunks_inserted", run.ChunksInserted),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSource, "source", "", "paper source: arxiv or gscholar (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeQuery, "query", "", "search query in pre-encoded form (default from config)")
	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 0, "listing pages to walk (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeWorkers, "workers", 0, "concurrent fetches (default NumCPU)")
	scrapeCmd.Flags().StringVar(&scrapeSources, "sources-file", "", "YAML file with per-source overrides")
	rootCmd.AddCommand(scrapeCmd)
}
