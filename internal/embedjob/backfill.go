// Package embedjob backfills vector embeddings for stored paper chunks.
// It drains the rows whose embedding column is still NULL in fixed-size
// batches, one provider call per batch, until none remain.
package embedjob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/model"
	"github.com/virtual-factory/paperline/pkg/openai"
)

const (
	// tokenLimit is the ceiling the embedding model accepts per input.
	tokenLimit = 8100
	// truncateStep is how many trailing words are dropped per truncation round.
	truncateStep = 500
)

// Store is the subset of the paper store the backfill loop touches.
type Store interface {
	UnembeddedChunks(ctx context.Context, table string, limit int) ([]model.PaperChunk, error)
	UpdateEmbeddings(ctx context.Context, table string, chunks []model.PaperChunk) (int64, error)
}

// TokenCounter measures text length in the embedding model's subword tokens.
type TokenCounter interface {
	Count(text string) int
}

// Config controls batch sizing and provider pacing.
type Config struct {
	// Model is the embedding model identifier.
	Model string
	// BatchSize is the number of rows fetched and embedded per pass.
	BatchSize int
	// Pace is the delay observed before every provider call.
	Pace time.Duration
}

// Stats summarizes one backfill run.
type Stats struct {
	Batches int   `json:"batches"`
	Chunks  int64 `json:"chunks"`
}

// Backfiller drives the embedding backfill loop for one paper table.
type Backfiller struct {
	store   Store
	client  openai.Client
	counter TokenCounter
	table   string
	cfg     Config
}

// New creates a Backfiller. Zero config fields fall back to defaults.
func New(st Store, client openai.Client, counter TokenCounter, table string, cfg Config) *Backfiller {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Pace < 0 {
		cfg.Pace = 0
	}
	return &Backfiller{
		store:   st,
		client:  client,
		counter: counter,
		table:   table,
		cfg:     cfg,
	}
}

// Run drains unembedded rows until a fetch comes back empty. Rows written
// in a batch stay written even if a later batch fails.
func (b *Backfiller) Run(ctx context.Context) (Stats, error) {
	log := zap.L().With(
		zap.String("table", b.table),
		zap.String("model", b.cfg.Model),
	)

	var stats Stats
	for {
		chunks, err := b.store.UnembeddedChunks(ctx, b.table, b.cfg.BatchSize)
		if err != nil {
			return stats, eris.Wrap(err, "embedjob: fetch unembedded chunks")
		}
		if len(chunks) == 0 {
			log.Info("backfill complete",
				zap.Int("batches", stats.Batches),
				zap.Int64("chunks", stats.Chunks),
			)
			return stats, nil
		}

		if err := b.pace(ctx); err != nil {
			return stats, err
		}

		docs := make([]string, len(chunks))
		for i, c := range chunks {
			docs[i] = b.truncate(document(c))
		}

		resp, err := b.client.Embeddings(ctx, openai.EmbeddingsRequest{
			Model:          b.cfg.Model,
			Input:          docs,
			EncodingFormat: "float",
		})
		if err != nil {
			return stats, eris.Wrap(err, "embedjob: create embeddings")
		}
		if len(resp.Data) != len(chunks) {
			return stats, eris.Errorf("embedjob: provider returned %d embeddings for %d inputs", len(resp.Data), len(chunks))
		}
		for i := range chunks {
			chunks[i].Embedding = resp.Data[i].Embedding
		}

		updated, err := b.store.UpdateEmbeddings(ctx, b.table, chunks)
		if err != nil {
			return stats, eris.Wrap(err, "embedjob: write back embeddings")
		}

		stats.Batches++
		stats.Chunks += updated
		log.Info("batch embedded",
			zap.Int("batch", stats.Batches),
			zap.Int("inputs", len(chunks)),
			zap.Int64("updated", updated),
		)
	}
}

// pace waits the configured delay before the next provider call.
func (b *Backfiller) pace(ctx context.Context) error {
	if b.cfg.Pace <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.cfg.Pace):
		return nil
	}
}

// truncate drops trailing word groups until the text measures under the
// token ceiling. Whitespace is normalized to single spaces as a side effect
// of the word split.
func (b *Backfiller) truncate(doc string) string {
	for b.counter.Count(doc) >= tokenLimit {
		words := strings.Fields(doc)
		if len(words) <= truncateStep {
			return ""
		}
		doc = strings.Join(words[:len(words)-truncateStep], " ")
	}
	return doc
}

// document assembles the text submitted for embedding.
func document(c model.PaperChunk) string {
	return fmt.Sprintf("%s %s %s", c.Title, c.Authors, c.Content)
}
