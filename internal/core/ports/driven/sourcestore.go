package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// SourceStore persists sources and enforces the status machine.
// Every operation is scoped by owner; a source owned by someone else
// behaves as if it does not exist.
type SourceStore interface {
	// Create stores a new source.
	Create(ctx context.Context, source *domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id, ownerID string) (*domain.Source, error)

	// List returns sources matching the filter, newest first.
	List(ctx context.Context, filter domain.SourceFilter) ([]domain.Source, error)

	// UpdateContent sets the extracted content only. Status is left to the caller.
	UpdateContent(ctx context.Context, id, ownerID, text string) error

	// SetError marks the source failed and records the message.
	SetError(ctx context.Context, id, ownerID, message string) error

	// SetStatus moves the source to status, returning domain.ErrInvalidTransition
	// when the current state does not allow it.
	SetStatus(ctx context.Context, id, ownerID string, status domain.SourceStatus) error

	// BeginReprocess resets the source to processing from any state and
	// clears the last error.
	BeginReprocess(ctx context.Context, id, ownerID string) error

	// SetSummary records a generated summary.
	SetSummary(ctx context.Context, id, ownerID, summary string) error

	// SetGovernance sets the retrieval exclusion flag and its category.
	SetGovernance(ctx context.Context, id, ownerID string, exclude bool, category string) error

	// Delete removes the source and cascades to its chunks and insights.
	Delete(ctx context.Context, id, ownerID string) error
}
