package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

const testOwner = "owner-1"

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	response *domain.SearchResponse
	err      error
	last     domain.SearchQuery
}

func (m *mockRetrievalService) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{}, nil
	}
	return m.response, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	details *driving.SourceDetails
	err     error

	ingested    []domain.IngestRequest
	reprocessed []string
	gotOwner    string
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.Source, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ingested = append(m.ingested, req)
	return &domain.Source{
		ID: "src-new", OwnerID: req.OwnerID, ClientID: req.ClientID,
		Kind: req.Kind, Name: req.Name, Origin: req.Origin, Status: domain.StatusProcessing,
	}, nil
}

func (m *mockIngestionService) BulkImport(_ context.Context, _ []domain.IngestRequest) ([]*domain.Source, error) {
	return nil, m.err
}

func (m *mockIngestionService) Reprocess(_ context.Context, id, ownerID string) (*domain.Source, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.reprocessed = append(m.reprocessed, id)
	m.gotOwner = ownerID
	return &domain.Source{ID: id, OwnerID: ownerID, Kind: domain.KindNote, Name: "Notes", Status: domain.StatusProcessing}, nil
}

func (m *mockIngestionService) Get(_ context.Context, _, ownerID string) (*driving.SourceDetails, error) {
	m.gotOwner = ownerID
	return m.details, m.err
}

func (m *mockIngestionService) List(_ context.Context, _ domain.SourceFilter) ([]domain.Source, error) {
	return nil, m.err
}

func (m *mockIngestionService) SetGovernance(_ context.Context, _, _ string, _ bool, _ string) error {
	return m.err
}

func (m *mockIngestionService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockIngestionService) Active() []driving.JobStatus {
	return nil
}

func (m *mockIngestionService) Drain(_ context.Context) error {
	return nil
}

func newTestServer(t *testing.T, retrieval *mockRetrievalService, ingestion *mockIngestionService) *Server {
	t.Helper()
	ports := &Ports{Retrieval: retrieval, OwnerID: testOwner}
	if ingestion != nil {
		ports.Ingestion = ingestion
	}
	server, err := NewServer(ports, "test")
	require.NoError(t, err)
	return server
}
