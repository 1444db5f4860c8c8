package provenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestProcessor_StampsScope(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return fixed }))

	source := &domain.Source{ID: "src-1", OwnerID: "owner-1", ClientID: domain.StringPtr("acme")}
	chunks := []domain.Chunk{{Text: "a", Index: 7}, {ID: "keep", Text: "b", Index: 3}}

	out, err := p.Process(context.Background(), source, chunks)
	require.NoError(t, err)
	require.Len(t, out, 2)

	for i, c := range out {
		assert.Equal(t, "src-1", c.SourceID)
		assert.Equal(t, "owner-1", c.OwnerID)
		require.NotNil(t, c.ClientID)
		assert.Equal(t, "acme", *c.ClientID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, fixed, c.CreatedAt)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, "keep", out[1].ID)

	// Chunks must not alias the source's client pointer.
	*source.ClientID = "other"
	assert.Equal(t, "acme", *out[0].ClientID)
}

func TestProcessor_NoClient(t *testing.T) {
	out, err := New().Process(context.Background(), &domain.Source{ID: "s", OwnerID: "o"}, []domain.Chunk{{Text: "x"}})
	require.NoError(t, err)
	assert.Nil(t, out[0].ClientID)
}

func TestProcessor_NilChunks(t *testing.T) {
	out, err := New().Process(context.Background(), &domain.Source{ID: "s"}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
