// Package scrape coordinates ingestion runs: every listing page is
// scraped for paper references first, then paper documents are fetched,
// chunked and upserted in batches.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/virtual-factory/paperline/internal/chunk"
	"github.com/virtual-factory/paperline/internal/fetcher"
	"github.com/virtual-factory/paperline/internal/model"
	"github.com/virtual-factory/paperline/internal/pdftext"
	"github.com/virtual-factory/paperline/internal/resilience"
	"github.com/virtual-factory/paperline/internal/source"
	"github.com/virtual-factory/paperline/internal/store"
)

// ErrNoResults marks a listing page that parsed cleanly but contained no
// result cards. Listing fetches retry on it, since both sources serve the
// occasional empty page under load.
var ErrNoResults = eris.New("scrape: no results on page")

// Config controls one ingestion run.
type Config struct {
	Query     string        // empty = source default
	Pages     int           // listing pages to walk
	Workers   int           // concurrent fetches; 0 = NumCPU
	BatchSize int           // papers per insert batch
	ChunkSize int           // words per chunk; 0 = chunk.DefaultSize
	Retries   int           // attempts per page or document
	RetryWait time.Duration // fixed wait between attempts
}

// Coordinator drives a two-phase ingestion run against one source.
type Coordinator struct {
	src     source.Source
	fetcher fetcher.Fetcher
	store   store.Store
	table   string
	cfg     Config

	// extract is swappable for tests; pdftext.Extract otherwise.
	extract func(data []byte) (string, error)
}

// New creates a Coordinator, applying defaults for unset config fields.
func New(src source.Source, f fetcher.Fetcher, st store.Store, table string, cfg Config) *Coordinator {
	if cfg.Pages <= 0 {
		cfg.Pages = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 3 * time.Second
	}
	return &Coordinator{
		src:     src,
		fetcher: f,
		store:   st,
		table:   table,
		cfg:     cfg,
		extract: pdftext.Extract,
	}
}

// Run executes one full ingestion run and returns its run-log entry.
// Individual page and document failures are recorded and skipped; only
// store errors abort the run.
func (c *Coordinator) Run(ctx context.Context) (*model.IngestRun, error) {
	query := c.cfg.Query
	if query == "" {
		query = c.src.DefaultQuery
	}

	run := &model.IngestRun{Source: c.src.Name, Query: query, Pages: c.cfg.Pages}
	if err := c.store.StartRun(ctx, run); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source", c.src.Name))
	log.Info("ingestion run started", zap.String("query", query), zap.Int("pages", c.cfg.Pages))

	refs, failures := c.collectReferences(ctx, query, run.ID)
	run.PapersFound = len(refs)
	log.Info("listing phase finished",
		zap.Int("papers", len(refs)),
		zap.Int("failed_pages", len(failures)))

	// Both sources occasionally list the same paper on two pages; only
	// the first copy of each chunk goes into a batch.
	seen := make(map[model.ChunkKey]struct{})

	var inserted int64
	for start := 0; start < len(refs); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(refs))

		papers, batchFailures := c.scrapeContents(ctx, refs[start:end], run.ID)
		failures = append(failures, batchFailures...)

		var chunks []model.PaperChunk
		for _, p := range papers {
			for _, ch := range chunk.Build(p, c.cfg.ChunkSize) {
				if _, dup := seen[ch.Key()]; dup {
					continue
				}
				seen[ch.Key()] = struct{}{}
				chunks = append(chunks, ch)
			}
		}

		n, err := c.store.UpsertChunks(ctx, c.table, chunks)
		if err != nil {
			return run, c.abort(ctx, run, failures, err)
		}
		inserted += n
		log.Info("batch upserted",
			zap.Int("papers", len(papers)),
			zap.Int("chunks", len(chunks)),
			zap.Int64("inserted", n))
	}
	run.ChunksInserted = int(inserted)

	if err := c.store.RecordFailures(ctx, failures); err != nil {
		log.Warn("recording fetch failures failed", zap.Error(err))
	}

	run.Status = model.IngestStatusComplete
	if err := c.store.FinishRun(ctx, run); err != nil {
		return run, err
	}
	log.Info("ingestion run complete",
		zap.Int("papers", run.PapersFound),
		zap.Int("chunks_inserted", run.ChunksInserted),
		zap.Int("failures", len(failures)))
	return run, nil
}

// abort marks the run failed, keeping whatever failure records were
// gathered before the fatal error.
func (c *Coordinator) abort(ctx context.Context, run *model.IngestRun, failures []model.FetchFailure, cause error) error {
	run.Status = model.IngestStatusFailed
	run.Error = cause.Error()
	if err := c.store.RecordFailures(ctx, failures); err != nil {
		zap.L().Warn("recording fetch failures failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := c.store.FinishRun(ctx, run); err != nil {
		zap.L().Warn("marking run failed did not persist", zap.String("run_id", run.ID), zap.Error(err))
	}
	return cause
}

// collectReferences walks every listing page concurrently and merges the
// parsed references. Pages that still fail after retries are logged,
// recorded and dropped.
func (c *Coordinator) collectReferences(ctx context.Context, query, runID string) ([]model.PaperReference, []model.FetchFailure) {
	var (
		mu       sync.Mutex
		refs     []model.PaperReference
		failures []model.FetchFailure
	)

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for page := 0; page < c.cfg.Pages; page++ {
		url := c.src.ListingURL(query, page)
		g.Go(func() error {
			pageRefs, err := c.fetchListing(ctx, url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("listing page dropped",
					zap.String("url", url),
					zap.String("error_type", resilience.ClassifyError(err)),
					zap.Error(err))
				failures = append(failures, model.FetchFailure{
					RunID:     runID,
					URL:       url,
					Stage:     model.FailureStageListing,
					ErrorType: resilience.ClassifyError(err),
					Error:     err.Error(),
				})
				return nil
			}
			refs = append(refs, pageRefs...)
			return nil
		})
	}
	_ = g.Wait()

	return refs, failures
}

// fetchListing downloads and parses one listing page, retrying transient
// failures and empty result sets with a fixed wait.
func (c *Coordinator) fetchListing(ctx context.Context, url string) ([]model.PaperReference, error) {
	cfg := resilience.FixedRetryConfig(c.cfg.Retries, c.cfg.RetryWait)
	cfg.ShouldRetry = func(err error) bool {
		return resilience.IsTransient(err) || errors.Is(err, ErrNoResults)
	}
	cfg.OnRetry = resilience.RetryLogger(c.src.Name, "listing fetch")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.PaperReference, error) {
		body, err := c.fetcher.FetchPage(ctx, url)
		if err != nil {
			return nil, err
		}
		if blocked, kind := DetectBlock(body); blocked {
			return nil, &BlockedError{URL: url, Type: kind}
		}
		pageRefs, err := c.src.Parser().Parse(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if len(pageRefs) == 0 {
			return nil, ErrNoResults
		}
		return pageRefs, nil
	})
}

// scrapeContents fetches and extracts document text for a batch of
// references. Papers whose fetch or extraction fails keep empty content,
// which later produces zero chunks; the failure is recorded.
func (c *Coordinator) scrapeContents(ctx context.Context, refs []model.PaperReference, runID string) ([]model.ScrapedPaper, []model.FetchFailure) {
	var (
		mu       sync.Mutex
		papers   []model.ScrapedPaper
		failures []model.FetchFailure
	)

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for _, ref := range refs {
		g.Go(func() error {
			paper, err := c.fetchContent(ctx, ref)
			mu.Lock()
			defer mu.Unlock()
			papers = append(papers, paper)
			if err != nil {
				zap.L().Warn("paper content skipped",
					zap.String("url", ref.Link),
					zap.String("error_type", resilience.ClassifyError(err)),
					zap.Error(err))
				failures = append(failures, model.FetchFailure{
					RunID:     runID,
					URL:       ref.Link,
					Stage:     model.FailureStageContent,
					ErrorType: resilience.ClassifyError(err),
					Error:     err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	return papers, failures
}

// fetchContent downloads one paper document and extracts its plain text.
// Aggregator links never serve the document directly, so they are skipped
// up front and keep empty content.
func (c *Coordinator) fetchContent(ctx context.Context, ref model.PaperReference) (model.ScrapedPaper, error) {
	paper := model.ScrapedPaper{PaperReference: ref}
	if ref.Aggregator {
		return paper, nil
	}

	cfg := resilience.FixedRetryConfig(c.cfg.Retries, c.cfg.RetryWait)
	cfg.OnRetry = resilience.RetryLogger(c.src.Name, "document fetch")

	data, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.fetcher.FetchBinary(ctx, ref.Link)
	})
	if err != nil {
		return paper, err
	}

	text, err := c.extract(data)
	if err != nil {
		return paper, err
	}
	paper.Content = text
	return paper, nil
}
