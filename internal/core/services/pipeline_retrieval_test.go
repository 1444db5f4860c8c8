package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/postprocessors"
)

// A chunk whose embedding failed stays out of semantic results but is still
// found by the literal fallback.
func TestPipeline_FailedChunkEmbeddingSearchableLexically(t *testing.T) {
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	// Offset 1100 falls only inside the second window (800-1800).
	indexing := &vocabEmbedder{vocab: []string{"failhere"}, failOn: "FAILHERE"}
	p, err := NewPipeline(
		store.SourceStore(), store.ChunkStore(), store.InsightStore(),
		extractors.NewRegistry(&echoExtractor{kinds: []domain.SourceKind{domain.KindNote}}),
		postprocessors.NewDefaultPipeline(1000, 200),
		WithEmbedder(indexing),
	)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	source, err := p.Ingest(ctx, noteRequest(textWithPhrase(3400, 1100, "FAILHERE")))
	require.NoError(t, err)
	require.NoError(t, p.Drain(ctx))

	details, err := p.Get(ctx, source.ID, testOwner)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, details.Source.Status)
	require.Equal(t, 5, details.ChunkCount)
	require.Equal(t, 4, details.EmbeddedChunks)

	chunks, err := store.ChunkStore().ListBySource(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	failed := chunks[1]
	require.False(t, failed.HasEmbedding())

	retrieval := NewRetrieval(store.ChunkStore(),
		WithQueryEmbedder(&vocabEmbedder{vocab: []string{"failhere"}}))

	t.Run("embedded chunks rank semantically", func(t *testing.T) {
		resp, err := retrieval.Search(ctx, domain.SearchQuery{
			Text:          "lorem ipsum",
			OwnerID:       testOwner,
			MinSimilarity: floatPtr(0.5),
			Limit:         10,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 4)

		indexes := make([]int, 0, len(resp.Results))
		for _, r := range resp.Results {
			assert.Equal(t, domain.MatchSemantic, r.MatchType)
			assert.NotEqual(t, failed.ID, r.ChunkID)
			indexes = append(indexes, r.Provenance.ChunkIndex)
		}
		assert.ElementsMatch(t, []int{0, 2, 3, 4}, indexes)
	})

	t.Run("failed chunk found lexically", func(t *testing.T) {
		// The query vector sits at 0.71 to every embedded chunk, below the threshold.
		resp, err := retrieval.Search(ctx, domain.SearchQuery{
			Text:          "failhere",
			OwnerID:       testOwner,
			MinSimilarity: floatPtr(0.9),
			Limit:         10,
			Hybrid:        true,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)

		r := resp.Results[0]
		assert.Equal(t, domain.MatchLexical, r.MatchType)
		assert.Equal(t, domain.LexicalScore, r.Score)
		assert.Equal(t, failed.ID, r.ChunkID)
		assert.Equal(t, 1, r.Provenance.ChunkIndex)
		assert.Equal(t, Snippet(failed.Text, "failhere", domain.SnippetRadius), r.Text)
		assert.Contains(t, r.Text, "FAILHERE")
	})
}
