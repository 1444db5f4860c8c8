package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()

	assert.NoError(t, ValidateEmbedding(ctx, domain.ModelSettings{}))
	assert.NoError(t, ValidateGenerator(ctx, domain.ModelSettings{}))

	good := domain.ModelSettings{Provider: domain.AIProviderOpenAI, APIKey: "good", BaseURL: srv.URL}
	assert.NoError(t, ValidateEmbedding(ctx, good))
	assert.NoError(t, ValidateGenerator(ctx, good))

	bad := domain.ModelSettings{Provider: domain.AIProviderOpenAI, APIKey: "bad", BaseURL: srv.URL}
	assert.Error(t, ValidateEmbedding(ctx, bad))
	assert.Error(t, ValidateGenerator(ctx, bad))

	assert.Error(t, ValidateEmbedding(ctx, domain.ModelSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}))
}
