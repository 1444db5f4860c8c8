// Package postprocessors turns extracted source text into retrievable chunks.
package postprocessors

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

var _ driven.ChunkPipeline = (*Pipeline)(nil)

// Pipeline runs ChunkProcessors in order, feeding each the previous output.
type Pipeline struct {
	processors []driven.ChunkProcessor
}

// NewPipeline creates a pipeline executing processors in the given order.
func NewPipeline(processors ...driven.ChunkProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process chunks the source's content. The first processor receives nil chunks.
func (p *Pipeline) Process(ctx context.Context, source *domain.Source) ([]domain.Chunk, error) {
	if source == nil {
		return nil, errors.New("source is nil")
	}

	var chunks []domain.Chunk
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		chunks, err = processor.Process(ctx, source, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return chunks, nil
}

// Add appends a processor.
func (p *Pipeline) Add(processor driven.ChunkProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names lists processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}
