package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ChunkProcessor transforms a source's text into chunks or refines chunks
// produced by an earlier processor.
type ChunkProcessor interface {
	// Name identifies the processor.
	Name() string

	// Process receives the source (with Content set) and the chunks of the
	// previous processor (nil for the first) and returns the new chunks.
	Process(ctx context.Context, source *domain.Source, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// ChunkPipeline runs a sequence of ChunkProcessors.
type ChunkPipeline interface {
	// Process runs every processor in order.
	Process(ctx context.Context, source *domain.Source) ([]domain.Chunk, error)
}
