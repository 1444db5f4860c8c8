package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// mockProcessor returns predefined chunks or passes its input through.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
	seen   []domain.Chunk
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.Source, chunks []domain.Chunk) ([]domain.Chunk, error) {
	m.seen = chunks
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func testSource(text string) *domain.Source {
	return &domain.Source{ID: "src", OwnerID: "owner", Kind: domain.KindNote, Content: &text}
}

func TestPipeline_AddAndLen(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 0, p.Len())

	p.Add(&mockProcessor{name: "a"})
	p.Add(&mockProcessor{name: "b"})
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"a", "b"}, p.Names())
}

func TestPipeline_Process_NilSource(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipeline_Process_Empty(t *testing.T) {
	chunks, err := NewPipeline().Process(context.Background(), testSource("x"))
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestPipeline_Process_ChainsOutput(t *testing.T) {
	first := &mockProcessor{name: "first", chunks: []domain.Chunk{{ID: "c1"}}}
	second := &mockProcessor{name: "second"}

	chunks, err := NewPipeline(first, second).Process(context.Background(), testSource("x"))
	require.NoError(t, err)

	assert.Nil(t, first.seen)
	assert.Equal(t, []domain.Chunk{{ID: "c1"}}, second.seen)
	assert.Len(t, chunks, 1)
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&mockProcessor{name: "failing", err: boom})

	_, err := p.Process(context.Background(), testSource("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
}

func TestPipeline_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(&mockProcessor{name: "a"}).Process(ctx, testSource("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDefaultPipeline(t *testing.T) {
	p := NewDefaultPipeline(1000, 200)
	assert.Equal(t, DefaultPipeline, p.Names())

	src := testSource(strings.Repeat("a", 2500))
	src.ClientID = domain.StringPtr("acme")

	chunks, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "owner", c.OwnerID)
		assert.Equal(t, "acme", *c.ClientID)
		assert.False(t, c.CreatedAt.IsZero())
	}
}
