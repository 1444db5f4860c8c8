package ai

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ValidateEmbedding creates the embedding provider and pings it.
// Unconfigured settings are valid.
func ValidateEmbedding(ctx context.Context, settings domain.ModelSettings) error {
	embedder, err := CreateEmbedding(settings)
	if err != nil || embedder == nil {
		return err
	}
	defer embedder.Close()
	return ping(ctx, embedder)
}

// ValidateGenerator creates a text generation or vision provider and pings it.
// Unconfigured settings are valid.
func ValidateGenerator(ctx context.Context, settings domain.ModelSettings) error {
	gen, err := CreateGenerator(settings)
	if err != nil || gen == nil {
		return err
	}
	defer gen.Close()
	return ping(ctx, gen)
}
