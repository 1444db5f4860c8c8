package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for dossier resources.
	uriScheme = "dossier://"

	sourcesPrefix = uriScheme + "sources/"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Ingestion == nil {
		return
	}

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: sourcesPrefix + "{sourceId}",
		Name:        "source",
		Description: "A source with its extracted content, summary and insights",
		MIMEType:    "application/json",
	}, s.handleSourceResource)
}

// sourceResource is the JSON body of a source resource.
type sourceResource struct {
	SourceOutput
	Content string `json:"content,omitempty"`
}

// handleSourceResource returns a source with its extracted content.
// Sources excluded from retrieval are returned without content.
func (s *Server) handleSourceResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sourceID := extractSourceID(req.Params.URI)
	if sourceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	details, err := s.ports.Ingestion.Get(ctx, sourceID, s.ports.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}

	body := sourceResource{SourceOutput: detailsOutput(details)}
	if !details.Source.ExcludeFromRag {
		body.Content = details.Source.ContentText()
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling source: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSourceID extracts the source id from dossier://sources/{sourceId}.
func extractSourceID(uri string) string {
	if !strings.HasPrefix(uri, sourcesPrefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, sourcesPrefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
