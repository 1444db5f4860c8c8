package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// withClock makes store timestamps advance one second per write.
func withClock(store *Store) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func createSource(t *testing.T, store *Store, id string, mutate ...func(*domain.Source)) *domain.Source {
	t.Helper()
	source := &domain.Source{
		ID:      id,
		OwnerID: "owner-1",
		Kind:    domain.KindNote,
		Name:    "Source " + id,
		Origin:  "inline",
		Status:  domain.StatusProcessing,
	}
	for _, m := range mutate {
		m(source)
	}
	require.NoError(t, store.SourceStore().Create(context.Background(), source))
	return source
}

// complete stores content and marks the source completed.
func complete(t *testing.T, store *Store, id, content string) {
	t.Helper()
	ctx := context.Background()
	sources := store.SourceStore()
	require.NoError(t, sources.UpdateContent(ctx, id, "owner-1", content))
	require.NoError(t, sources.SetStatus(ctx, id, "owner-1", domain.StatusCompleted))
}

// ==================== Store Creation Tests ====================

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dossier.db"), store.Path())

	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening applies no migration twice.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

// ==================== Source Store Tests ====================

func TestSourceStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := createSource(t, store, "s1", func(s *domain.Source) {
		s.ClientID = domain.StringPtr("acme")
		s.MIMEType = "text/plain"
	})
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.SourceStore().Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Source s1", got.Name)
	assert.Equal(t, domain.KindNote, got.Kind)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Equal(t, "acme", got.ClientKey())
	assert.Equal(t, "text/plain", got.MIMEType)
	assert.Nil(t, got.Content)
	assert.Nil(t, got.LastError)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSourceStore_OwnerScoping(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sources := store.SourceStore()
	createSource(t, store, "s1")

	_, err := sources.Get(ctx, "s1", "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, sources.UpdateContent(ctx, "s1", "intruder", "x"), domain.ErrNotFound)
	assert.ErrorIs(t, sources.SetStatus(ctx, "s1", "intruder", domain.StatusFailed), domain.ErrNotFound)
	assert.ErrorIs(t, sources.Delete(ctx, "s1", "intruder"), domain.ErrNotFound)

	_, err = sources.Get(ctx, "s1", "owner-1")
	assert.NoError(t, err)
}

func TestSourceStore_CreateValidates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.SourceStore().Create(ctx, &domain.Source{ID: "s1", Kind: domain.KindNote})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.SourceStore().Create(ctx, &domain.Source{ID: "s1", OwnerID: "o", Kind: "fax"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	createSource(t, store, "dup")
	err = store.SourceStore().Create(ctx, &domain.Source{ID: "dup", OwnerID: "owner-1", Kind: domain.KindNote})
	assert.Error(t, err)
}

func TestSourceStore_StatusMachine(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sources := store.SourceStore()

	createSource(t, store, "s1", func(s *domain.Source) { s.Status = domain.StatusPending })

	err := sources.SetStatus(ctx, "s1", "owner-1", domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, sources.SetStatus(ctx, "s1", "owner-1", domain.StatusProcessing))

	err = sources.SetStatus(ctx, "s1", "owner-1", domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "completed requires content")

	complete(t, store, "s1", "body")

	err = sources.SetStatus(ctx, "s1", "owner-1", domain.StatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = sources.SetError(ctx, "s1", "owner-1", "late failure")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := sources.Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "body", got.ContentText())
}

func TestSourceStore_SetErrorAndReprocess(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sources := store.SourceStore()
	createSource(t, store, "s1")

	require.NoError(t, sources.UpdateContent(ctx, "s1", "owner-1", "[Error: fetch failed]"))
	require.NoError(t, sources.SetError(ctx, "s1", "owner-1", "fetch failed"))

	got, err := sources.Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "fetch failed", *got.LastError)
	assert.NoError(t, got.Validate())

	require.NoError(t, sources.BeginReprocess(ctx, "s1", "owner-1"))

	got, err = sources.Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Nil(t, got.LastError)
	assert.Equal(t, "[Error: fetch failed]", got.ContentText(), "content is kept until re-extraction")

	assert.ErrorIs(t, sources.BeginReprocess(ctx, "missing", "owner-1"), domain.ErrNotFound)
}

func TestSourceStore_SummaryAndGovernance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sources := store.SourceStore()
	createSource(t, store, "s1")

	require.NoError(t, sources.SetSummary(ctx, "s1", "owner-1", "short"))
	require.NoError(t, sources.SetGovernance(ctx, "s1", "owner-1", true, domain.CategoryLegalHold))

	got, err := sources.Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "short", *got.Summary)
	assert.True(t, got.ExcludeFromRag)
	require.NotNil(t, got.Category)
	assert.Equal(t, domain.CategoryLegalHold, *got.Category)

	require.NoError(t, sources.SetGovernance(ctx, "s1", "owner-1", false, "ignored"))
	got, err = sources.Get(ctx, "s1", "owner-1")
	require.NoError(t, err)
	assert.False(t, got.ExcludeFromRag)
	assert.Nil(t, got.Category)
}

func TestSourceStore_List(t *testing.T) {
	store := setupTestStore(t)
	withClock(store)
	ctx := context.Background()

	createSource(t, store, "a", func(s *domain.Source) { s.ClientID = domain.StringPtr("acme") })
	createSource(t, store, "b", func(s *domain.Source) { s.Kind = domain.KindWebsite })
	createSource(t, store, "c", func(s *domain.Source) { s.ClientID = domain.StringPtr("globex") })
	createSource(t, store, "d", func(s *domain.Source) { s.OwnerID = "owner-2" })
	complete(t, store, "b", "site")

	ids := func(filter domain.SourceFilter) []string {
		list, err := store.SourceStore().List(ctx, filter)
		require.NoError(t, err)
		var out []string
		for _, s := range list {
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a"}, ids(domain.SourceFilter{OwnerID: "owner-1"}))
	assert.Equal(t, []string{"a"}, ids(domain.SourceFilter{OwnerID: "owner-1", ClientID: domain.StringPtr("acme")}))
	personal := ""
	assert.Equal(t, []string{"b"}, ids(domain.SourceFilter{OwnerID: "owner-1", ClientID: &personal}))
	assert.Equal(t, []string{"b"}, ids(domain.SourceFilter{OwnerID: "owner-1", Kinds: []domain.SourceKind{domain.KindWebsite}}))
	assert.Equal(t, []string{"b"}, ids(domain.SourceFilter{
		OwnerID: "owner-1", Statuses: []domain.SourceStatus{domain.StatusCompleted},
	}))
	assert.Equal(t, []string{"c", "b"}, ids(domain.SourceFilter{OwnerID: "owner-1", Limit: 2}))

	_, err := store.SourceStore().List(ctx, domain.SourceFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Chunk Store Tests ====================

func makeChunks(sourceID string, n int, embed func(i int) []float32) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:       fmt.Sprintf("%s-c%d", sourceID, i),
			SourceID: sourceID,
			OwnerID:  "owner-1",
			Index:    i,
			Text:     fmt.Sprintf("chunk %d of %s", i, sourceID),
		}
		if embed != nil {
			chunks[i].Embedding = embed(i)
		}
	}
	return chunks
}

func TestChunkStore_ReplaceAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	chunks := store.ChunkStore()
	createSource(t, store, "s1")

	vec := []float32{0.25, -1.5, 3}
	require.NoError(t, chunks.Replace(ctx, "s1", makeChunks("s1", 3, func(i int) []float32 {
		if i == 1 {
			return nil
		}
		return vec
	})))

	got, err := chunks.ListBySource(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, vec, got[0].Embedding)
	assert.Nil(t, got[1].Embedding)
	assert.Equal(t, "chunk 2 of s1", got[2].Text)

	total, embedded, err := chunks.CountBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, embedded)

	// A reprocess replaces rather than appends.
	require.NoError(t, chunks.Replace(ctx, "s1", makeChunks("s1", 1, nil)))
	total, embedded, err = chunks.CountBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, embedded)
}

func TestChunkStore_ReplaceRejectsForeignChunk(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createSource(t, store, "s1")
	require.NoError(t, store.ChunkStore().Replace(ctx, "s1", makeChunks("s1", 2, nil)))

	err := store.ChunkStore().Replace(ctx, "s1", makeChunks("other", 1, nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	total, _, err := store.ChunkStore().CountBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, total, "failed replace rolls back")
}

func TestChunkStore_DeleteCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createSource(t, store, "s1")
	require.NoError(t, store.ChunkStore().Replace(ctx, "s1", makeChunks("s1", 2, nil)))
	require.NoError(t, store.InsightStore().Replace(ctx, "s1", []domain.Insight{
		{ID: "i1", SourceID: "s1", OwnerID: "owner-1", Text: "fact"},
	}))

	require.NoError(t, store.SourceStore().Delete(ctx, "s1", "owner-1"))

	chunks, err := store.ChunkStore().ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	insights, err := store.InsightStore().ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestChunkStore_SemanticCandidates(t *testing.T) {
	store := setupTestStore(t)
	withClock(store)
	ctx := context.Background()
	chunks := store.ChunkStore()

	vec := func(int) []float32 { return []float32{1, 0} }

	createSource(t, store, "done", func(s *domain.Source) { s.ClientID = domain.StringPtr("acme") })
	createSource(t, store, "busy")
	createSource(t, store, "hidden")
	createSource(t, store, "web", func(s *domain.Source) { s.Kind = domain.KindWebsite })

	for _, id := range []string{"done", "busy", "hidden", "web"} {
		all := makeChunks(id, 2, vec)
		all[1].Embedding = nil
		if id == "done" {
			all[0].ClientID = domain.StringPtr("acme")
		}
		require.NoError(t, chunks.Replace(ctx, id, all))
	}
	complete(t, store, "done", "x")
	complete(t, store, "hidden", "x")
	complete(t, store, "web", "x")
	require.NoError(t, store.SourceStore().SetGovernance(ctx, "hidden", "owner-1", true, domain.CategoryConfidential))

	got, err := chunks.SemanticCandidates(ctx, domain.Scope{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "web-c0", got[0].Chunk.ID, "most recently updated source first")
	assert.Equal(t, "done-c0", got[1].Chunk.ID)
	assert.Equal(t, "Source done", got[1].SourceName)
	assert.Equal(t, []float32{1, 0}, got[1].Chunk.Embedding)

	got, err = chunks.SemanticCandidates(ctx, domain.Scope{OwnerID: "owner-1", ClientID: domain.StringPtr("acme")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acme", *got[0].Chunk.ClientID)

	got, err = chunks.SemanticCandidates(ctx, domain.Scope{
		OwnerID: "owner-1", Kinds: []domain.SourceKind{domain.KindWebsite},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindWebsite, got[0].Kind)

	got, err = chunks.SemanticCandidates(ctx, domain.Scope{OwnerID: "owner-2"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunkStore_LexicalMatches(t *testing.T) {
	store := setupTestStore(t)
	withClock(store)
	ctx := context.Background()
	chunks := store.ChunkStore()

	createSource(t, store, "chunked")
	require.NoError(t, chunks.Replace(ctx, "chunked", []domain.Chunk{
		{ID: "k0", SourceID: "chunked", OwnerID: "owner-1", Index: 0, Text: "intro"},
		{ID: "k1", SourceID: "chunked", OwnerID: "owner-1", Index: 1, Text: "the Kubernetes migration plan"},
	}))
	complete(t, store, "chunked", "intro the Kubernetes migration plan")

	createSource(t, store, "content-only")
	complete(t, store, "content-only", "Notes on kubernetes costs")

	createSource(t, store, "named", func(s *domain.Source) { s.Name = "Kubernetes audit" })
	complete(t, store, "named", "nothing relevant")

	createSource(t, store, "excluded")
	complete(t, store, "excluded", "kubernetes secrets")
	require.NoError(t, store.SourceStore().SetGovernance(ctx, "excluded", "owner-1", true, domain.CategoryConfidential))

	createSource(t, store, "pending")
	require.NoError(t, store.SourceStore().UpdateContent(ctx, "pending", "owner-1", "kubernetes draft"))

	got, err := chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "KUBERNETES", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "named", got[0].SourceID)
	assert.Empty(t, got[0].Text, "name-only match carries no text")

	assert.Equal(t, "content-only", got[1].SourceID)
	assert.Equal(t, "Notes on kubernetes costs", got[1].Text)
	assert.Empty(t, got[1].ChunkID)

	assert.Equal(t, "chunked", got[2].SourceID)
	assert.Equal(t, "k1", got[2].ChunkID)
	assert.Equal(t, 1, got[2].ChunkIndex)
	assert.Equal(t, "the Kubernetes migration plan", got[2].Text)

	got, err = chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "kubernetes",
		[]string{"named", "chunked"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "content-only", got[0].SourceID)

	got, err = chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "kubernetes", nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunkStore_LexicalMatches_FoldsUnicode(t *testing.T) {
	store := setupTestStore(t)
	withClock(store)
	ctx := context.Background()
	chunks := store.ChunkStore()

	createSource(t, store, "chunked")
	require.NoError(t, chunks.Replace(ctx, "chunked", []domain.Chunk{
		{ID: "k0", SourceID: "chunked", OwnerID: "owner-1", Index: 0, Text: "intro"},
		{ID: "k1", SourceID: "chunked", OwnerID: "owner-1", Index: 1, Text: "Überblick zur Migration"},
	}))
	complete(t, store, "chunked", "intro Überblick zur Migration")

	createSource(t, store, "named", func(s *domain.Source) { s.Name = "ÜBERBLICK deck" })
	complete(t, store, "named", "slides")

	createSource(t, store, "content-only")
	complete(t, store, "content-only", "Ein kurzer ÜBERBLICK")

	createSource(t, store, "excluded")
	complete(t, store, "excluded", "überblick vertraulich")
	require.NoError(t, store.SourceStore().SetGovernance(ctx, "excluded", "owner-1", true, domain.CategoryConfidential))

	got, err := chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "überblick", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "content-only", got[0].SourceID)
	assert.Equal(t, "Ein kurzer ÜBERBLICK", got[0].Text)
	assert.Empty(t, got[0].ChunkID)

	assert.Equal(t, "named", got[1].SourceID)
	assert.Empty(t, got[1].Text)

	assert.Equal(t, "chunked", got[2].SourceID)
	assert.Equal(t, "k1", got[2].ChunkID)
	assert.Equal(t, 1, got[2].ChunkIndex)

	got, err = chunks.LexicalMatches(ctx, domain.Scope{OwnerID: "owner-1"}, "überblick",
		[]string{"content-only"}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "named", got[0].SourceID)
}

// ==================== Insight Store Tests ====================

func TestInsightStore_Replace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insights := store.InsightStore()
	createSource(t, store, "s1")

	require.NoError(t, insights.Replace(ctx, "s1", []domain.Insight{
		{ID: "i2", SourceID: "s1", OwnerID: "owner-1", Index: 1, Text: "second"},
		{ID: "i1", SourceID: "s1", OwnerID: "owner-1", Index: 0, Text: "first", ClientID: domain.StringPtr("acme")},
	}))

	got, err := insights.ListBySource(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "acme", *got[0].ClientID)

	require.NoError(t, insights.Replace(ctx, "s1", nil))
	got, err = insights.ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ==================== Helper Tests ====================

func TestFloat32Roundtrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 1e-7}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
	assert.Nil(t, embeddingValue(nil))
}

func TestScopeClause(t *testing.T) {
	where, args := scopeClause("s", domain.Scope{
		OwnerID:  "o",
		ClientID: domain.StringPtr("acme"),
		Kinds:    []domain.SourceKind{domain.KindNote, domain.KindEmail},
	})
	assert.Equal(t, "s.owner_id = ? AND s.client_id = ? AND s.kind IN (?, ?)", where)
	assert.Equal(t, []any{"o", "acme", "note", "email"}, args)
}
