package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/virtual-factory/paperline/internal/db"
	"github.com/virtual-factory/paperline/internal/model"
)

// PostgresStore implements Store using pgxpool. Paper tables carry a
// pgvector column, so the target database needs the vector extension
// available.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore from a connection string.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse connection string")
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// embeddingDims matches the text-embedding-3-small output size. Switching
// embedding models means migrating the vector columns.
const embeddingDims = 1536

// coreMigration creates the fixed operational tables. Paper tables are
// created separately per source because their names come from configuration.
const coreMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS ingest_runs (
	id              TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	query           TEXT NOT NULL DEFAULT '',
	pages           INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'running',
	papers_found    INTEGER NOT NULL DEFAULT 0,
	chunks_inserted INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at DESC);

CREATE TABLE IF NOT EXISTS fetch_failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	url        TEXT NOT NULL,
	stage      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fetch_failures_run_id ON fetch_failures(run_id);
`

// paperTableTemplate is instantiated once per source table. The unique
// constraint on (link, chunk_num) is the conflict target for upserts.
const paperTableTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id             BIGSERIAL PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	link           TEXT NOT NULL,
	authors        TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL DEFAULT '',
	chunk_num      INTEGER NOT NULL,
	citation_count INTEGER,
	embedding      vector(%[2]d),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (link, chunk_num)
);

CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s(link, chunk_num) WHERE embedding IS NULL;
`

// Migrate creates the operational tables plus one paper table per name given.
func (s *PostgresStore) Migrate(ctx context.Context, paperTables ...string) error {
	if _, err := s.pool.Exec(ctx, coreMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate core tables")
	}
	for _, table := range paperTables {
		idx := pgx.Identifier{fmt.Sprintf("idx_%s_unembedded", strings.ReplaceAll(table, ".", "_"))}.Sanitize()
		ddl := fmt.Sprintf(paperTableTemplate, db.SanitizeTable(table), embeddingDims, idx)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return eris.Wrapf(err, "postgres: create paper table %s", table)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// paperColumns is the insert column list for paper tables.
var paperColumns = []string{"title", "link", "authors", "content", "chunk_num", "citation_count"}

// UpsertChunks bulk-inserts chunks, skipping rows whose (link, chunk_num)
// already exists so re-scraping the same papers is idempotent. Returns the
// number of rows actually inserted.
func (s *PostgresStore) UpsertChunks(ctx context.Context, table string, chunks []model.PaperChunk) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, []any{c.Title, c.Link, c.Authors, c.Content, c.ChunkNum, c.CitationCount})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        table,
		Columns:      paperColumns,
		ConflictKeys: []string{"link", "chunk_num"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert chunks into %s", table)
	}
	return n, nil
}

// UnembeddedChunks returns up to limit chunks still waiting for an embedding,
// in (link, chunk_num) order so repeated calls walk the backlog
// deterministically.
func (s *PostgresStore) UnembeddedChunks(ctx context.Context, table string, limit int) ([]model.PaperChunk, error) {
	q := fmt.Sprintf(
		"SELECT title, link, authors, content, chunk_num FROM %s WHERE embedding IS NULL ORDER BY link, chunk_num LIMIT $1",
		db.SanitizeTable(table),
	)

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query unembedded chunks in %s", table)
	}
	defer rows.Close()

	var chunks []model.PaperChunk
	for rows.Next() {
		var c model.PaperChunk
		if err := rows.Scan(&c.Title, &c.Link, &c.Authors, &c.Content, &c.ChunkNum); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk")
		}
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "postgres: iterate chunks")
}

// UpdateEmbeddings writes embeddings back by (link, chunk_num) in a single
// statement. Every chunk must carry an embedding.
func (s *PostgresStore) UpdateEmbeddings(ctx context.Context, table string, chunks []model.PaperChunk) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	var values strings.Builder
	args := make([]any, 0, len(chunks)*3)
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return 0, eris.Errorf("postgres: chunk %s#%d has no embedding", c.Link, c.ChunkNum)
		}
		if i > 0 {
			values.WriteString(", ")
		}
		fmt.Fprintf(&values, "($%d::vector, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, VectorLiteral(c.Embedding), c.Link, c.ChunkNum)
	}

	q := fmt.Sprintf(
		"UPDATE %s AS t SET embedding = v.embedding FROM (VALUES %s) AS v(embedding, link, chunk_num) WHERE t.link = v.link AND t.chunk_num = v.chunk_num",
		db.SanitizeTable(table),
		values.String(),
	)

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update embeddings in %s", table)
	}
	return tag.RowsAffected(), nil
}

// NearestChunks returns the limit chunks nearest to the query embedding by
// inner-product distance, nearest first.
func (s *PostgresStore) NearestChunks(ctx context.Context, table string, embedding []float32, limit int) ([]model.SearchHit, error) {
	if len(embedding) == 0 {
		return nil, eris.New("postgres: empty query embedding")
	}

	q := fmt.Sprintf(
		"SELECT title, authors, content, citation_count, embedding <#> $1::vector AS distance FROM %s WHERE embedding IS NOT NULL ORDER BY embedding <#> $1::vector LIMIT $2",
		db.SanitizeTable(table),
	)

	rows, err := s.pool.Query(ctx, q, VectorLiteral(embedding), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query nearest chunks in %s", table)
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.Title, &h.Authors, &h.Content, &h.CitationCount, &h.Distance); err != nil {
			return nil, eris.Wrap(err, "postgres: scan search hit")
		}
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "postgres: iterate search hits")
}

// GetRun returns one run by ID, or nil when it does not exist.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.IngestRun, error) {
	var run model.IngestRun
	err := s.pool.QueryRow(ctx,
		"SELECT id, source, query, pages, status, papers_found, chunks_inserted, error, started_at, completed_at FROM ingest_runs WHERE id = $1",
		runID,
	).Scan(&run.ID, &run.Source, &run.Query, &run.Pages, &run.Status, &run.PapersFound, &run.ChunksInserted, &run.Error, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &run, nil
}

// StartRun inserts a new run-log row, assigning ID, status and start time
// when unset.
func (s *PostgresStore) StartRun(ctx context.Context, run *model.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.IngestStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO ingest_runs (id, source, query, pages, status, papers_found, chunks_inserted, error, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		run.ID, run.Source, run.Query, run.Pages, run.Status, run.PapersFound, run.ChunksInserted, run.Error, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

// FinishRun records the terminal status and counters for a run.
func (s *PostgresStore) FinishRun(ctx context.Context, run *model.IngestRun) error {
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE ingest_runs SET status = $2, papers_found = $3, chunks_inserted = $4, error = $5, completed_at = $6 WHERE id = $1",
		run.ID, run.Status, run.PapersFound, run.ChunksInserted, run.Error, completed,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", run.ID)
	}
	run.CompletedAt = &completed
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		"SELECT id, source, query, pages, status, papers_found, chunks_inserted, error, started_at, completed_at FROM ingest_runs ORDER BY started_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var run model.IngestRun
		if err := rows.Scan(&run.ID, &run.Source, &run.Query, &run.Pages, &run.Status, &run.PapersFound, &run.ChunksInserted, &run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

// failureColumns is the COPY column list for fetch_failures.
var failureColumns = []string{"id", "run_id", "url", "stage", "error_type", "error", "created_at"}

// RecordFailures bulk-inserts failure rows, assigning IDs and timestamps
// when unset.
func (s *PostgresStore) RecordFailures(ctx context.Context, failures []model.FetchFailure) error {
	if len(failures) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(failures))
	for i := range failures {
		f := &failures[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		rows = append(rows, []any{f.ID, f.RunID, f.URL, f.Stage, f.ErrorType, f.Error, f.CreatedAt})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "fetch_failures", failureColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: record fetch failures")
	}
	return nil
}

// ListFailures returns recent failures, optionally filtered by run.
func (s *PostgresStore) ListFailures(ctx context.Context, runID string, limit int) ([]model.FetchFailure, error) {
	if limit <= 0 {
		limit = 50
	}

	q := "SELECT id, run_id, url, stage, error_type, error, created_at FROM fetch_failures"
	args := []any{}
	argIdx := 1
	if runID != "" {
		q += fmt.Sprintf(" WHERE run_id = $%d", argIdx)
		args = append(args, runID)
		argIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var failures []model.FetchFailure
	for rows.Next() {
		var f model.FetchFailure
		if err := rows.Scan(&f.ID, &f.RunID, &f.URL, &f.Stage, &f.ErrorType, &f.Error, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "postgres: iterate failures")
}
