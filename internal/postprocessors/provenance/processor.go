// Package provenance stamps chunks with their parent source's scope.
package provenance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

var _ driven.ChunkProcessor = (*Processor)(nil)

// Processor copies source ID, owner and client onto each chunk and
// renumbers indexes from zero.
type Processor struct {
	now func() time.Time
}

// Option configures the processor.
type Option func(*Processor)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New creates a provenance processor.
func New(opts ...Option) *Processor {
	p := &Processor{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "provenance"
}

// Process stamps chunks in place and returns them.
func (p *Processor) Process(_ context.Context, source *domain.Source, chunks []domain.Chunk) ([]domain.Chunk, error) {
	now := p.now().UTC()

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.SourceID = source.ID
		c.OwnerID = source.OwnerID
		c.ClientID = nil
		if source.ClientID != nil {
			clientID := *source.ClientID
			c.ClientID = &clientID
		}
		c.Index = i
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}

	return chunks, nil
}
