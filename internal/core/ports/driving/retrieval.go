package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// RetrievalService ranks stored chunks against a query.
type RetrievalService interface {
	// Search returns ranked results. An empty query is an error; an empty
	// result set is not.
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error)
}
