package mcp

import (
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Retrieval ranks chunks for the search tool.
	Retrieval driving.RetrievalService

	// Ingestion queues and inspects sources. Optional; the ingestion tools
	// and source resources are not registered without it.
	Ingestion driving.IngestionService

	// OwnerID scopes every request made through the server.
	OwnerID string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}
