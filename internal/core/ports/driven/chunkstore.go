package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ChunkStore persists chunks and serves retrieval candidates.
type ChunkStore interface {
	// Replace removes all chunks of a source and writes the given ones
	// atomically, so a reprocess never leaves duplicates.
	Replace(ctx context.Context, sourceID string, chunks []domain.Chunk) error

	// ListBySource returns the chunks of a source ordered by index.
	ListBySource(ctx context.Context, sourceID string) ([]domain.Chunk, error)

	// CountBySource returns the number of chunks and embedded chunks of a source.
	CountBySource(ctx context.Context, sourceID string) (total, embedded int, err error)

	// SemanticCandidates returns every embedded chunk in scope whose source
	// is completed and not excluded from retrieval.
	SemanticCandidates(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error)

	// LexicalMatches returns sources in scope whose chunk text, content or
	// name contains query case-insensitively, newest first. Sources listed in
	// exclude and sources excluded from retrieval are skipped.
	LexicalMatches(
		ctx context.Context, scope domain.Scope, query string, exclude []string, limit int,
	) ([]domain.LexicalMatch, error)
}

// InsightStore persists generated insights.
type InsightStore interface {
	// Replace swaps all insights of a source for the given ones.
	Replace(ctx context.Context, sourceID string, insights []domain.Insight) error

	// ListBySource returns the insights of a source ordered by index.
	ListBySource(ctx context.Context, sourceID string) ([]domain.Insight, error)
}
