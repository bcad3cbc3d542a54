package main

import (
	"context"

	"github.com/virtual-factory/paperline/internal/rag"
	"github.com/virtual-factory/paperline/internal/store"
	"github.com/virtual-factory/paperline/pkg/anthropic"
	"github.com/virtual-factory/paperline/pkg/openai"
)

// initStore connects to Postgres. Callers should defer Close.
func initStore(ctx context.Context) (*store.PostgresStore, error) {
	return store.NewPostgres(ctx, cfg.Store.DSN(), nil)
}

// initOpenAI builds the OpenAI client from config.
func initOpenAI() openai.Client {
	var opts []openai.Option
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return openai.NewClient(cfg.OpenAI.Key, opts...)
}

// initAnswerer wires the answering pipeline for the ask and serve
// commands. The Anthropic client is only built when that provider is
// selected.
func initAnswerer(st store.Store, table string) *rag.Answerer {
	var claude anthropic.Client
	if cfg.Ask.Provider == rag.ProviderAnthropic {
		claude = anthropic.NewClient(cfg.Anthropic.Key)
	}

	return rag.New(st, initOpenAI(), claude, table, rag.Config{
		Provider:           cfg.Ask.Provider,
		EmbedModel:         cfg.OpenAI.EmbedModel,
		ChatModel:          cfg.OpenAI.ChatModel,
		AnthropicModel:     cfg.Anthropic.Model,
		AnthropicMaxTokens: int64(cfg.Anthropic.MaxTokens),
		TopN:               cfg.Ask.TopN,
		MaxContextWords:    cfg.Ask.MaxContextWords,
		BreakerThreshold:   cfg.Ask.BreakerFailureThreshold,
		BreakerResetSecs:   cfg.Ask.BreakerResetSecs,
	})
}
