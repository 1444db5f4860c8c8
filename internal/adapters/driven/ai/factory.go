// Package ai builds embedding, text generation and vision providers from
// settings.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/dossier/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/dossier/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/dossier/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/dossier/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/dossier/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// pingTimeout is the maximum time to wait for provider connectivity validation.
const pingTimeout = 5 * time.Second

var log = logger.With("ai")

// Generator is a model that can both generate text and describe images.
// Every supported provider implements both.
type Generator interface {
	driven.TextGenProvider
	driven.VisionProvider
}

// Providers holds the optional AI capabilities available to the pipeline.
// A nil field means the capability is disabled.
type Providers struct {
	Embedding driven.EmbeddingProvider
	TextGen   driven.TextGenProvider
	Vision    driven.VisionProvider

	// Warnings lists capabilities that were configured but unreachable.
	Warnings []string
}

// Close releases all providers.
func (p *Providers) Close() {
	if p.Embedding != nil {
		_ = p.Embedding.Close()
	}
	if p.TextGen != nil {
		_ = p.TextGen.Close()
	}
	if c, ok := p.Vision.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// Init creates every configured provider and pings it. Unreachable
// providers are dropped with a warning so ingestion degrades instead of
// failing.
func Init(ctx context.Context, settings domain.Settings) *Providers {
	result := &Providers{}

	if embedder, err := CreateEmbedding(settings.Embedding); err != nil {
		result.warn("embedding", err)
	} else if embedder != nil {
		if err := ping(ctx, embedder); err != nil {
			_ = embedder.Close()
			result.warn("embedding", fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err))
		} else {
			result.Embedding = embedder
		}
	}

	if gen, err := CreateGenerator(settings.TextGen); err != nil {
		result.warn("text generation", err)
	} else if gen != nil {
		if err := ping(ctx, gen); err != nil {
			_ = gen.Close()
			result.warn("text generation", fmt.Errorf("%w: %w", domain.ErrTextGenUnavailable, err))
		} else {
			result.TextGen = gen
		}
	}

	if gen, err := CreateGenerator(settings.Vision); err != nil {
		result.warn("vision", err)
	} else if gen != nil {
		if err := ping(ctx, gen); err != nil {
			_ = gen.Close()
			result.warn("vision", fmt.Errorf("%w: %w", domain.ErrVisionUnavailable, err))
		} else {
			result.Vision = gen
		}
	}

	return result
}

func (p *Providers) warn(capability string, err error) {
	msg := fmt.Sprintf("%s disabled: %v", capability, err)
	log.Warn("%s", msg)
	p.Warnings = append(p.Warnings, msg)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func ping(ctx context.Context, p pinger) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}

// CreateEmbedding creates the embedding provider for settings.
// Returns nil if the capability is not configured.
func CreateEmbedding(settings domain.ModelSettings) (driven.EmbeddingProvider, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.New(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		p, err := openaiembed.New(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateGenerator creates a text generation and vision provider for settings.
// Returns nil if the capability is not configured.
func CreateGenerator(settings domain.ModelSettings) (Generator, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.New(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		p, err := openaillm.New(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case domain.AIProviderAnthropic:
		p, err := anthropicllm.New(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", settings.Provider)
	}
}
