package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func newTestStore() *Store {
	s := NewStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s
}

func addSource(t *testing.T, s *Store, id string, mutate ...func(*domain.Source)) {
	t.Helper()
	src := &domain.Source{ID: id, OwnerID: "o1", Kind: domain.KindNote, Name: id, Status: domain.StatusProcessing}
	for _, m := range mutate {
		m(src)
	}
	require.NoError(t, s.SourceStore().Create(context.Background(), src))
}

func finish(t *testing.T, s *Store, id, content string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SourceStore().UpdateContent(ctx, id, "o1", content))
	require.NoError(t, s.SourceStore().SetStatus(ctx, id, "o1", domain.StatusCompleted))
}

func TestSourceStore_Lifecycle(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	sources := s.SourceStore()
	addSource(t, s, "s1")

	_, err := sources.Get(ctx, "s1", "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = sources.SetStatus(ctx, "s1", "o1", domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, sources.UpdateContent(ctx, "s1", "o1", "[Error: boom]"))
	require.NoError(t, sources.SetError(ctx, "s1", "o1", "boom"))
	assert.ErrorIs(t, sources.SetStatus(ctx, "s1", "o1", domain.StatusCompleted), domain.ErrInvalidTransition)

	require.NoError(t, sources.BeginReprocess(ctx, "s1", "o1"))
	finish(t, s, "s1", "fixed")

	got, err := sources.Get(ctx, "s1", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Nil(t, got.LastError)
	assert.Equal(t, "fixed", got.ContentText())

	// Returned values are copies.
	*got.Content = "mutated"
	again, err := sources.Get(ctx, "s1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "fixed", again.ContentText())
}

func TestSourceStore_CreateRejectsDuplicates(t *testing.T) {
	s := newTestStore()
	addSource(t, s, "s1")

	err := s.SourceStore().Create(context.Background(), &domain.Source{ID: "s1", OwnerID: "o1", Kind: domain.KindNote})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSourceStore_ListAndGovernance(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	addSource(t, s, "a", func(src *domain.Source) { src.ClientID = domain.StringPtr("acme") })
	addSource(t, s, "b")
	addSource(t, s, "c", func(src *domain.Source) { src.OwnerID = "o2" })

	list, err := s.SourceStore().List(ctx, domain.SourceFilter{OwnerID: "o1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	personal := ""
	list, err = s.SourceStore().List(ctx, domain.SourceFilter{OwnerID: "o1", ClientID: &personal})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	require.NoError(t, s.SourceStore().SetGovernance(ctx, "a", "o1", true, domain.CategoryPersonal))
	got, err := s.SourceStore().Get(ctx, "a", "o1")
	require.NoError(t, err)
	assert.True(t, got.ExcludeFromRag)
	assert.Equal(t, domain.CategoryPersonal, *got.Category)
}

func TestChunkStore_CandidatesAndCascade(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	chunks := s.ChunkStore()

	addSource(t, s, "old")
	addSource(t, s, "new")
	addSource(t, s, "excluded")
	for _, id := range []string{"old", "new", "excluded"} {
		require.NoError(t, chunks.Replace(ctx, id, []domain.Chunk{
			{ID: id + "-1", OwnerID: "o1", Index: 1, Text: "second", Embedding: []float32{0, 1}},
			{ID: id + "-0", OwnerID: "o1", Index: 0, Text: "first", Embedding: []float32{1, 0}},
			{ID: id + "-2", OwnerID: "o1", Index: 2, Text: "third"},
		}))
	}
	finish(t, s, "old", "x")
	finish(t, s, "new", "x")
	finish(t, s, "excluded", "x")
	require.NoError(t, s.SourceStore().SetGovernance(ctx, "excluded", "o1", true, ""))

	got, err := chunks.SemanticCandidates(ctx, domain.Scope{OwnerID: "o1"})
	require.NoError(t, err)
	var ids []string
	for _, c := range got {
		ids = append(ids, c.Chunk.ID)
	}
	assert.Equal(t, []string{"new-0", "new-1", "old-0", "old-1"}, ids)

	total, embedded, err := chunks.CountBySource(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, embedded)

	require.NoError(t, s.SourceStore().Delete(ctx, "old", "o1"))
	listed, err := chunks.ListBySource(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, listed)

	err = chunks.Replace(ctx, "old", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkStore_LexicalMatches(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	chunks := s.ChunkStore()

	addSource(t, s, "chunked")
	require.NoError(t, chunks.Replace(ctx, "chunked", []domain.Chunk{
		{ID: "k0", OwnerID: "o1", Index: 0, Text: "intro"},
		{ID: "k1", OwnerID: "o1", Index: 1, Text: "Überblick zur Migration"},
	}))
	finish(t, s, "chunked", "intro Überblick zur Migration")

	addSource(t, s, "named", func(src *domain.Source) { src.Name = "ÜBERBLICK deck" })
	finish(t, s, "named", "slides")

	got, err := chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "o1"}, "überblick", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "named", got[0].SourceID)
	assert.Empty(t, got[0].Text)
	assert.Equal(t, "k1", got[1].ChunkID)
	assert.Equal(t, 1, got[1].ChunkIndex)

	got, err = chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "o1"}, "überblick", []string{"named"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chunked", got[0].SourceID)
}

func TestInsightStore(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	addSource(t, s, "s1")

	require.NoError(t, s.InsightStore().Replace(ctx, "s1", []domain.Insight{
		{ID: "b", Index: 1, Text: "later"},
		{ID: "a", Index: 0, Text: "first"},
	}))

	got, err := s.InsightStore().ListBySource(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "s1", got[0].SourceID)

	assert.ErrorIs(t, s.InsightStore().Replace(ctx, "missing", nil), domain.ErrNotFound)
}
