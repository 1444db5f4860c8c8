package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/metrics"
)

func TestNewServer(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{OwnerID: testOwner}
		server, err := NewServer(ports, "test")
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("missing owner returns error", func(t *testing.T) {
		ports := &Ports{Retrieval: &mockRetrievalService{}}
		_, err := NewServer(ports, "test")
		assert.ErrorIs(t, err, ErrMissingOwner)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Retrieval: &mockRetrievalService{},
			Ingestion: &mockIngestionService{},
			OwnerID:   testOwner,
		}
		server, err := NewServer(ports, "")
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("retrieval only is valid", func(t *testing.T) {
		ports := &Ports{Retrieval: &mockRetrievalService{}, OwnerID: testOwner}
		assert.NoError(t, ports.Validate())
	})

	t.Run("ingestion without retrieval is invalid", func(t *testing.T) {
		ports := &Ports{Ingestion: &mockIngestionService{}, OwnerID: testOwner}
		assert.ErrorIs(t, ports.Validate(), ErrMissingRetrievalService)
	})
}

func TestServer_HandlerServesMetrics(t *testing.T) {
	metrics.Get().SearchRequests.WithLabelValues("semantic").Inc()
	server := newTestServer(t, &mockRetrievalService{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dossier_search_requests_total")
}
