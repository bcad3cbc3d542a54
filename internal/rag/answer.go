// Package rag answers questions against the ingested paper corpus. The
// question is embedded, the nearest chunks are retrieved by inner product,
// and a word-budgeted context is assembled into the completion prompt.
package rag

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/model"
	"github.com/virtual-factory/paperline/internal/resilience"
	"github.com/virtual-factory/paperline/pkg/anthropic"
	"github.com/virtual-factory/paperline/pkg/openai"
)

// Completion providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// systemPrompt is sent with every completion request.
const systemPrompt = "You are a helpful assistant named the Virtual Factory Platform." +
	"You are designed to help users answer any questions they may have regarding lithium-ion batteries and related topics." +
	"Provide the most accurate and helpful response you can."

// Store is the retrieval surface the answerer needs.
type Store interface {
	NearestChunks(ctx context.Context, table string, embedding []float32, limit int) ([]model.SearchHit, error)
}

// Config controls retrieval breadth, context sizing and provider choice.
type Config struct {
	// Provider selects the completion backend, "openai" or "anthropic".
	Provider string
	// EmbedModel encodes the question.
	EmbedModel string
	// ChatModel is the OpenAI completion model.
	ChatModel string
	// AnthropicModel is the completion model on the anthropic provider.
	AnthropicModel string
	// AnthropicMaxTokens caps the anthropic completion length.
	AnthropicMaxTokens int64
	// TopN is the number of nearest rows retrieved per question.
	TopN int
	// MaxContextWords is the running word budget for the assembled context.
	MaxContextWords int
	// BreakerThreshold is the consecutive provider failures before the
	// circuit opens; BreakerResetSecs is how long it stays open.
	BreakerThreshold int
	BreakerResetSecs int
}

// Answer is the assembled reply for one question.
type Answer struct {
	Text      string `json:"answer"`
	Documents int    `json:"documents"`
	Model     string `json:"model"`
}

// Answerer embeds questions, retrieves context and calls the provider.
type Answerer struct {
	store   Store
	oai     openai.Client
	claude  anthropic.Client
	table   string
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates an Answerer. claude may be nil when the provider is "openai".
func New(st Store, oai openai.Client, claude anthropic.Client, table string, cfg Config) *Answerer {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.AnthropicModel == "" {
		cfg.AnthropicModel = "claude-haiku-4-5-20251001"
	}
	if cfg.AnthropicMaxTokens <= 0 {
		cfg.AnthropicMaxTokens = 1024
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	if cfg.MaxContextWords <= 0 {
		cfg.MaxContextWords = 30000
	}

	bcfg := resilience.FromCircuitConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs)

	return &Answerer{
		store:   st,
		oai:     oai,
		claude:  claude,
		table:   table,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(bcfg),
	}
}

// Answer runs the full retrieval-augmented flow for one question.
func (a *Answerer) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, eris.New("rag: empty question")
	}

	embedding, err := a.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := a.store.NearestChunks(ctx, a.table, embedding, a.cfg.TopN)
	if err != nil {
		return nil, eris.Wrap(err, "rag: retrieve context")
	}

	docs := buildContext(hits, a.cfg.MaxContextWords)
	prompt := buildUserPrompt(docs, question)

	zap.L().Info("context assembled",
		zap.String("table", a.table),
		zap.String("provider", a.cfg.Provider),
		zap.Int("hits", len(hits)),
		zap.Int("documents", len(docs)),
	)

	switch a.cfg.Provider {
	case ProviderAnthropic:
		return a.askAnthropic(ctx, prompt, len(docs))
	default:
		return a.askOpenAI(ctx, prompt, len(docs))
	}
}

func (a *Answerer) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*openai.EmbeddingsResponse, error) {
		return a.oai.Embeddings(ctx, openai.EmbeddingsRequest{
			Model:          a.cfg.EmbedModel,
			Input:          []string{question},
			EncodingFormat: "float",
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "rag: embed question")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("rag: embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}

func (a *Answerer) askOpenAI(ctx context.Context, prompt string, docs int) (*Answer, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*openai.ChatResponse, error) {
		return a.oai.ChatCompletion(ctx, openai.ChatRequest{
			Model: a.cfg.ChatModel,
			Messages: []openai.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			Temperature: 0.0,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "rag: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("rag: completion returned no choices")
	}

	return &Answer{
		Text:      resp.Choices[0].Message.Content,
		Documents: docs,
		Model:     a.cfg.ChatModel,
	}, nil
}

func (a *Answerer) askAnthropic(ctx context.Context, prompt string, docs int) (*Answer, error) {
	if a.claude == nil {
		return nil, eris.New("rag: anthropic provider not configured")
	}

	temp := 0.0
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.claude.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.cfg.AnthropicModel,
			MaxTokens:   a.cfg.AnthropicMaxTokens,
			System:      systemPrompt,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "rag: chat completion")
	}
	resp.Usage.LogCost(a.cfg.AnthropicModel, "answer")

	return &Answer{
		Text:      resp.Text(),
		Documents: docs,
		Model:     a.cfg.AnthropicModel,
	}, nil
}

// BreakerState reports the provider circuit's current state.
func (a *Answerer) BreakerState() string {
	return a.breaker.State().String()
}
