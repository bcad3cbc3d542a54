package embedjob

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-factory/paperline/internal/model"
	"github.com/virtual-factory/paperline/pkg/openai"
)

// fakeStore serves queued batches of unembedded chunks and records write-backs.
type fakeStore struct {
	batches    [][]model.PaperChunk
	fetchCalls int
	updates    [][]model.PaperChunk
	updateErr  error
}

func (s *fakeStore) UnembeddedChunks(_ context.Context, _ string, _ int) ([]model.PaperChunk, error) {
	s.fetchCalls++
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *fakeStore) UpdateEmbeddings(_ context.Context, _ string, chunks []model.PaperChunk) (int64, error) {
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	cp := make([]model.PaperChunk, len(chunks))
	copy(cp, chunks)
	s.updates = append(s.updates, cp)
	return int64(len(chunks)), nil
}

// fakeClient implements openai.Client with a programmable embeddings call.
type fakeClient struct {
	requests []openai.EmbeddingsRequest
	embedFn  func(req openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error)
}

func (c *fakeClient) Embeddings(_ context.Context, req openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error) {
	c.requests = append(c.requests, req)
	return c.embedFn(req)
}

func (c *fakeClient) ChatCompletion(context.Context, openai.ChatRequest) (*openai.ChatResponse, error) {
	panic("not used")
}

// wordCounter treats every whitespace-separated word as one token.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// echoEmbeddings returns one small vector per input, tagged by position.
func echoEmbeddings(req openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error) {
	resp := &openai.EmbeddingsResponse{}
	for i := range req.Input {
		resp.Data = append(resp.Data, openai.Embedding{
			Index:     i,
			Embedding: []float32{float32(i), float32(i) + 0.5},
		})
	}
	return resp, nil
}

func chunk(link string, num int) model.PaperChunk {
	return model.PaperChunk{
		Title:    "Solid-State Batteries",
		Link:     link,
		Authors:  "A. Researcher",
		Content:  "sulfide electrolytes",
		ChunkNum: num,
	}
}

func TestBackfiller_Run(t *testing.T) {
	st := &fakeStore{
		batches: [][]model.PaperChunk{
			{chunk("https://arxiv.org/abs/1", 0), chunk("https://arxiv.org/abs/1", 1)},
			{chunk("https://arxiv.org/abs/2", 0)},
		},
	}
	client := &fakeClient{embedFn: echoEmbeddings}

	b := New(st, client, wordCounter{}, "arxiv", Config{Model: "text-embedding-3-small", BatchSize: 10})
	stats, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, int64(3), stats.Chunks)
	// Two batches plus the final empty fetch that ends the loop.
	assert.Equal(t, 3, st.fetchCalls)

	require.Len(t, client.requests, 2)
	assert.Equal(t, "text-embedding-3-small", client.requests[0].Model)
	assert.Equal(t, "float", client.requests[0].EncodingFormat)
	require.Len(t, client.requests[0].Input, 2)
	assert.Equal(t, "Solid-State Batteries A. Researcher sulfide electrolytes", client.requests[0].Input[0])

	require.Len(t, st.updates, 2)
	first := st.updates[0]
	require.Len(t, first, 2)
	assert.Equal(t, []float32{0, 0.5}, first[0].Embedding)
	assert.Equal(t, []float32{1, 1.5}, first[1].Embedding)
	assert.Equal(t, 0, first[0].ChunkNum)
	assert.Equal(t, 1, first[1].ChunkNum)
}

func TestBackfiller_Run_NoWork(t *testing.T) {
	st := &fakeStore{}
	client := &fakeClient{embedFn: echoEmbeddings}

	b := New(st, client, wordCounter{}, "arxiv", Config{})
	stats, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Batches)
	assert.Equal(t, int64(0), stats.Chunks)
	assert.Empty(t, client.requests)
}

func TestBackfiller_Run_ProviderError(t *testing.T) {
	st := &fakeStore{batches: [][]model.PaperChunk{{chunk("https://arxiv.org/abs/1", 0)}}}
	client := &fakeClient{embedFn: func(openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error) {
		return nil, eris.New("openai: status 401")
	}}

	b := New(st, client, wordCounter{}, "arxiv", Config{})
	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create embeddings")
	assert.Empty(t, st.updates)
}

func TestBackfiller_Run_CountMismatch(t *testing.T) {
	st := &fakeStore{batches: [][]model.PaperChunk{
		{chunk("https://arxiv.org/abs/1", 0), chunk("https://arxiv.org/abs/1", 1)},
	}}
	client := &fakeClient{embedFn: func(openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error) {
		return &openai.EmbeddingsResponse{Data: []openai.Embedding{{Index: 0, Embedding: []float32{1}}}}, nil
	}}

	b := New(st, client, wordCounter{}, "arxiv", Config{})
	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 embeddings for 2 inputs")
	assert.Empty(t, st.updates)
}

func TestBackfiller_Run_WriteBackError(t *testing.T) {
	st := &fakeStore{
		batches:   [][]model.PaperChunk{{chunk("https://arxiv.org/abs/1", 0)}},
		updateErr: eris.New("postgres: pool closed"),
	}
	client := &fakeClient{embedFn: echoEmbeddings}

	b := New(st, client, wordCounter{}, "arxiv", Config{})
	stats, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write back")
	assert.Equal(t, 0, stats.Batches)
}

func TestBackfiller_Run_ContextCancelled(t *testing.T) {
	st := &fakeStore{batches: [][]model.PaperChunk{{chunk("https://arxiv.org/abs/1", 0)}}}
	client := &fakeClient{embedFn: echoEmbeddings}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(st, client, wordCounter{}, "arxiv", Config{Pace: 50 * time.Millisecond})
	_, err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.requests)
}

func TestBackfiller_PaceBeforeCall(t *testing.T) {
	st := &fakeStore{batches: [][]model.PaperChunk{{chunk("https://arxiv.org/abs/1", 0)}}}
	client := &fakeClient{embedFn: echoEmbeddings}

	b := New(st, client, wordCounter{}, "arxiv", Config{Pace: 30 * time.Millisecond})
	start := time.Now()
	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBackfiller_Defaults(t *testing.T) {
	b := New(&fakeStore{}, &fakeClient{}, wordCounter{}, "arxiv", Config{})
	assert.Equal(t, "text-embedding-3-small", b.cfg.Model)
	assert.Equal(t, 500, b.cfg.BatchSize)
	assert.Equal(t, time.Duration(0), b.cfg.Pace)
}

func repeatWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "cathode"
	}
	return strings.Join(words, " ")
}

func TestTruncate(t *testing.T) {
	b := New(&fakeStore{}, &fakeClient{}, wordCounter{}, "arxiv", Config{})

	short := "a short document"
	assert.Equal(t, short, b.truncate(short))

	// 8600 words: two rounds of 500 bring it to 7600.
	out := b.truncate(repeatWords(8600))
	assert.Len(t, strings.Fields(out), 7600)

	// Just under the ceiling passes untouched.
	under := repeatWords(8099)
	assert.Equal(t, under, b.truncate(under))

	// Exactly at the ceiling loses one group.
	out = b.truncate(repeatWords(8100))
	assert.Len(t, strings.Fields(out), 7600)
}

func TestTruncate_PreservesWhitespaceWhenUnderLimit(t *testing.T) {
	b := New(&fakeStore{}, &fakeClient{}, wordCounter{}, "arxiv", Config{})
	doc := "line one\nline two\ttabbed"
	assert.Equal(t, doc, b.truncate(doc))
}

func TestDocument(t *testing.T) {
	c := model.PaperChunk{Title: "T", Authors: "A", Content: "C"}
	assert.Equal(t, "T A C", document(c))
}
