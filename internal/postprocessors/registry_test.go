package postprocessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/postprocessors/chunker"
)

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(_ map[string]any) (driven.ChunkProcessor, error) {
		return &mockProcessor{name: "test"}, nil
	})

	assert.True(t, r.Has("test"))
	assert.False(t, r.Has("missing"))

	p, err := r.Build("test", nil)
	require.NoError(t, err)
	assert.Equal(t, "test", p.Name())
}

func TestRegistry_Build_Unknown(t *testing.T) {
	_, err := NewRegistry().Build("nope", nil)
	assert.ErrorContains(t, err, "unknown processor: nope")
}

func TestRegistry_Names_Sorted(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	assert.Equal(t, []string{"chunker", "provenance"}, r.Names())
}

func TestBuildChunker_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]any
		size    int
		overlap int
	}{
		{"nil config", nil, chunker.DefaultChunkSize, chunker.DefaultChunkOverlap},
		{"int values", map[string]any{"chunk_size": 500, "overlap": 50}, 500, 50},
		{"toml int64", map[string]any{"chunk_size": int64(800), "overlap": int64(0)}, 800, 0},
		{"json float64", map[string]any{"chunk_size": float64(300)}, 300, chunker.DefaultChunkOverlap},
		{"wrong type", map[string]any{"chunk_size": "big"}, chunker.DefaultChunkSize, chunker.DefaultChunkOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildChunker(tt.cfg)
			require.NoError(t, err)
			c, ok := p.(*chunker.Processor)
			require.True(t, ok)
			assert.Equal(t, tt.size, c.ChunkSize())
			assert.Equal(t, tt.overlap, c.Overlap())
		})
	}
}

func TestRegistry_BuildPipeline_Unknown(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	_, err := r.BuildPipeline([]string{"chunker", "stemmer"}, nil)
	assert.Error(t, err)
}
