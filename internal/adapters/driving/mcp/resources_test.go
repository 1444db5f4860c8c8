package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

func TestExtractSourceID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid source URI", uri: "dossier://sources/src-123", expected: "src-123"},
		{name: "invalid prefix", uri: "file://sources/src-123", expected: ""},
		{name: "nested path", uri: "dossier://sources/src-123/chunks", expected: ""},
		{name: "missing id", uri: "dossier://sources/", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractSourceID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleSourceResource(t *testing.T) {
	ctx := context.Background()
	content := "Extracted body text"

	t.Run("returns source with content", func(t *testing.T) {
		ingestion := &mockIngestionService{details: &driving.SourceDetails{
			Source: domain.Source{
				ID: "src-1", Name: "Brief", Kind: domain.KindDocument,
				Status: domain.StatusCompleted, Content: &content,
			},
			ChunkCount: 1,
		}}
		server := newTestServer(t, &mockRetrievalService{}, ingestion)

		result, err := server.handleSourceResource(ctx, makeReadResourceRequest("dossier://sources/src-1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &body))
		assert.Equal(t, "src-1", body["id"])
		assert.Equal(t, content, body["content"])
		assert.Equal(t, float64(1), body["chunks"])
	})

	t.Run("excluded source omits content", func(t *testing.T) {
		ingestion := &mockIngestionService{details: &driving.SourceDetails{
			Source: domain.Source{
				ID: "src-2", Name: "Memo", Kind: domain.KindDocument,
				Status: domain.StatusCompleted, Content: &content, ExcludeFromRag: true,
			},
		}}
		server := newTestServer(t, &mockRetrievalService{}, ingestion)

		result, err := server.handleSourceResource(ctx, makeReadResourceRequest("dossier://sources/src-2"))

		require.NoError(t, err)
		assert.NotContains(t, result.Contents[0].Text, content)
		assert.Contains(t, result.Contents[0].Text, `"exclude_from_rag": true`)
	})

	t.Run("unknown source is not found", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{}, &mockIngestionService{err: domain.ErrNotFound})

		_, err := server.handleSourceResource(ctx, makeReadResourceRequest("dossier://sources/missing"))

		assert.Error(t, err)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{}, &mockIngestionService{})

		_, err := server.handleSourceResource(ctx, makeReadResourceRequest("dossier://other/src-1"))

		assert.Error(t, err)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{}, &mockIngestionService{err: errors.New("disk full")})

		_, err := server.handleSourceResource(ctx, makeReadResourceRequest("dossier://sources/src-1"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting source: disk full")
	})
}
