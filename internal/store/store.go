package store

import (
	"context"

	"github.com/virtual-factory/paperline/internal/model"
)

// Store defines the persistence interface for the paper pipeline.
type Store interface {
	// Paper chunks
	UpsertChunks(ctx context.Context, table string, chunks []model.PaperChunk) (int64, error)
	UnembeddedChunks(ctx context.Context, table string, limit int) ([]model.PaperChunk, error)
	UpdateEmbeddings(ctx context.Context, table string, chunks []model.PaperChunk) (int64, error)
	NearestChunks(ctx context.Context, table string, embedding []float32, limit int) ([]model.SearchHit, error)

	// Ingest runs
	StartRun(ctx context.Context, run *model.IngestRun) error
	FinishRun(ctx context.Context, run *model.IngestRun) error
	GetRun(ctx context.Context, runID string) (*model.IngestRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Fetch failures
	RecordFailures(ctx context.Context, failures []model.FetchFailure) error
	ListFailures(ctx context.Context, runID string, limit int) ([]model.FetchFailure, error)

	// Lifecycle
	Migrate(ctx context.Context, paperTables ...string) error
	Ping(ctx context.Context) error
	Close() error
}
