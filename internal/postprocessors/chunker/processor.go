// Package chunker provides a fixed-size sliding window chunker.
package chunker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
const DefaultChunkOverlap = 200

var _ driven.ChunkProcessor = (*Processor)(nil)

// Processor splits source content into overlapping windows of characters.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// The window must advance.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured window size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Process splits the source content into chunks. Input chunks are ignored.
// Blank content and extraction markers produce no chunks.
func (p *Processor) Process(_ context.Context, source *domain.Source, _ []domain.Chunk) ([]domain.Chunk, error) {
	text := source.ContentText()
	if strings.TrimSpace(text) == "" || domain.IsMarker(text) {
		return nil, nil
	}

	return p.Split(source.ID, text), nil
}

// Split windows text measured in characters, not bytes.
func (p *Processor) Split(sourceID, text string) []domain.Chunk {
	runes := []rune(text)
	length := len(runes)
	if length == 0 {
		return nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, length/step+1)

	index := 0
	for start := 0; start < length; start += step {
		end := start + p.chunkSize
		if end > length {
			end = length
		}

		chunks = append(chunks, domain.Chunk{
			ID:       uuid.New().String(),
			SourceID: sourceID,
			Index:    index,
			Text:     string(runes[start:end]),
		})
		index++
	}

	return chunks
}
