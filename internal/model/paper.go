package model

import "time"

// PaperReference is one result card parsed from a search listing page.
// It carries only metadata; content is fetched in a later phase.
type PaperReference struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Authors       string `json:"authors"`
	CitationCount *int   `json:"citation_count,omitempty"`
	Aggregator    bool   `json:"aggregator,omitempty"` // link points at an aggregator mirror, not a direct PDF
}

// ScrapedPaper is a PaperReference plus its extracted full text.
// Content is empty when the PDF fetch or extraction failed.
type ScrapedPaper struct {
	PaperReference
	Content string `json:"content"`
}

// PaperChunk is one persisted word-bounded slice of a paper's text.
// (Link, ChunkNum) is the identity; Embedding stays nil until the
// backfill loop fills it in.
type PaperChunk struct {
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Authors       string    `json:"authors"`
	Content       string    `json:"content"`
	ChunkNum      int       `json:"chunk_num"`
	CitationCount *int      `json:"citation_count,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// ChunkKey identifies a chunk row for embedding write-back.
type ChunkKey struct {
	Link     string `json:"link"`
	ChunkNum int    `json:"chunk_num"`
}

// Key returns the chunk's compound identity.
func (c PaperChunk) Key() ChunkKey {
	return ChunkKey{Link: c.Link, ChunkNum: c.ChunkNum}
}

// SearchHit is one row returned by a nearest-neighbor query.
type SearchHit struct {
	Title         string  `json:"title"`
	Authors       string  `json:"authors"`
	Content       string  `json:"content"`
	CitationCount *int    `json:"citation_count,omitempty"`
	Distance      float64 `json:"distance"`
}

// IngestStatus represents the state of one scrape invocation.
type IngestStatus string

const (
	IngestStatusRunning  IngestStatus = "running"
	IngestStatusComplete IngestStatus = "complete"
	IngestStatusFailed   IngestStatus = "failed"
)

// IngestRun is the run-log row recorded for each scrape invocation.
type IngestRun struct {
	ID             string       `json:"id"`
	Source         string       `json:"source"`
	Query          string       `json:"query"`
	Pages          int          `json:"pages"`
	Status         IngestStatus `json:"status"`
	PapersFound    int          `json:"papers_found"`
	ChunksInserted int          `json:"chunks_inserted"`
	Error          string       `json:"error,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// Failure stages.
const (
	FailureStageListing = "listing"
	FailureStageContent = "content"
)

// FetchFailure records a URL that permanently failed within a run, with
// enough context for an operator to re-run it by hand.
type FetchFailure struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	URL       string    `json:"url"`
	Stage     string    `json:"stage"`      // "listing" or "content"
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
