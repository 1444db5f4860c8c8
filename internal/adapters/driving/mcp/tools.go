package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dossier/internal/connectors/github"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the text to search for"`
	ClientID      string   `json:"client_id,omitempty" jsonschema:"restrict results to one client"`
	Kinds         []string `json:"kinds,omitempty" jsonschema:"restrict results to source kinds (document, image, website, repo, email, recording, note)"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	MinSimilarity *float64 `json:"min_similarity,omitempty" jsonschema:"drop semantic matches scoring below this value (0 to 1)"`
	Literal       *bool    `json:"literal,omitempty" jsonschema:"add sources containing the query literally after semantic matches (default true)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
	Notice  string                `json:"notice,omitempty"`
}

// IngestURLInput is the input schema for the ingest_url tool.
type IngestURLInput struct {
	URL      string `json:"url" jsonschema:"website or GitHub repository URL"`
	Name     string `json:"name,omitempty" jsonschema:"display name for the source"`
	ClientID string `json:"client_id,omitempty" jsonschema:"client the source belongs to"`
}

// SourceIDInput identifies a single source.
type SourceIDInput struct {
	SourceID string `json:"source_id" jsonschema:"the source id"`
}

// SourceOutput describes a source and its processing state.
type SourceOutput struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	Origin         string   `json:"origin"`
	ClientID       *string  `json:"client_id,omitempty"`
	Status         string   `json:"status"`
	LastError      *string  `json:"last_error,omitempty"`
	Summary        *string  `json:"summary,omitempty"`
	ExcludeFromRag bool     `json:"exclude_from_rag"`
	Chunks         int      `json:"chunks"`
	EmbeddedChunks int      `json:"embedded_chunks"`
	Insights       []string `json:"insights,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search ingested client material by meaning, with literal matches as a fallback",
	}, s.handleSearch)

	if s.ports.Ingestion == nil {
		return
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_url",
		Description: "Queue a website or GitHub repository for ingestion; processing continues in the background",
	}, s.handleIngestURL)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reprocess_source",
		Description: "Extract, chunk and embed an existing source again",
	}, s.handleReprocess)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_source",
		Description: "Get a source's processing status, summary and insights",
	}, s.handleGetSource)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	query := domain.SearchQuery{
		Text:          input.Query,
		OwnerID:       s.ports.OwnerID,
		ClientID:      domain.StringPtr(strings.TrimSpace(input.ClientID)),
		Limit:         input.Limit,
		MinSimilarity: input.MinSimilarity,
		Hybrid:        input.Literal == nil || *input.Literal,
	}
	for _, k := range input.Kinds {
		kind, err := domain.ParseKind(k)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		query.Kinds = append(query.Kinds, kind)
	}

	resp, err := s.ports.Retrieval.Search(ctx, query)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: resp.Results,
		Count:   len(resp.Results),
		Notice:  resp.Notice,
	}
	if output.Results == nil {
		output.Results = []domain.SearchResult{}
	}
	return nil, output, nil
}

// handleIngestURL handles the ingest_url tool invocation.
func (s *Server) handleIngestURL(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestURLInput,
) (*mcp.CallToolResult, SourceOutput, error) {
	locator := strings.TrimSpace(input.URL)
	if locator == "" {
		return nil, SourceOutput{}, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}

	req := domain.IngestRequest{
		OwnerID:  s.ports.OwnerID,
		ClientID: domain.StringPtr(strings.TrimSpace(input.ClientID)),
		Kind:     domain.KindWebsite,
		Name:     input.Name,
		Origin:   locator,
	}
	if github.IsRepoURL(locator) {
		req.Kind = domain.KindRepo
	} else if !strings.Contains(locator, "://") {
		req.Origin = "https://" + locator
	}

	source, err := s.ports.Ingestion.Ingest(ctx, req)
	if err != nil {
		return nil, SourceOutput{}, err
	}
	log.Info("queued %s %s from tool call", source.Kind, source.ID)
	return nil, sourceOutput(source), nil
}

// handleReprocess handles the reprocess_source tool invocation.
func (s *Server) handleReprocess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SourceIDInput,
) (*mcp.CallToolResult, SourceOutput, error) {
	if input.SourceID == "" {
		return nil, SourceOutput{}, fmt.Errorf("%w: source_id is required", domain.ErrInvalidInput)
	}
	source, err := s.ports.Ingestion.Reprocess(ctx, input.SourceID, s.ports.OwnerID)
	if err != nil {
		return nil, SourceOutput{}, err
	}
	return nil, sourceOutput(source), nil
}

// handleGetSource handles the get_source tool invocation.
func (s *Server) handleGetSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SourceIDInput,
) (*mcp.CallToolResult, SourceOutput, error) {
	if input.SourceID == "" {
		return nil, SourceOutput{}, fmt.Errorf("%w: source_id is required", domain.ErrInvalidInput)
	}
	out, err := s.sourceDetails(ctx, input.SourceID)
	if err != nil {
		return nil, SourceOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) sourceDetails(ctx context.Context, id string) (SourceOutput, error) {
	details, err := s.ports.Ingestion.Get(ctx, id, s.ports.OwnerID)
	if err != nil {
		return SourceOutput{}, err
	}
	if details == nil {
		return SourceOutput{}, errors.New("source details unavailable")
	}
	return detailsOutput(details), nil
}

func detailsOutput(details *driving.SourceDetails) SourceOutput {
	out := sourceOutput(&details.Source)
	out.Chunks = details.ChunkCount
	out.EmbeddedChunks = details.EmbeddedChunks
	for _, in := range details.Insights {
		out.Insights = append(out.Insights, in.Text)
	}
	return out
}

func sourceOutput(src *domain.Source) SourceOutput {
	return SourceOutput{
		ID:             src.ID,
		Name:           src.Name,
		Kind:           src.Kind.String(),
		Origin:         src.Origin,
		ClientID:       src.ClientID,
		Status:         src.Status.String(),
		LastError:      src.LastError,
		Summary:        src.Summary,
		ExcludeFromRag: src.ExcludeFromRag,
	}
}
