package postprocessors

import (
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/postprocessors/chunker"
	"github.com/custodia-labs/dossier/internal/postprocessors/provenance"
)

// DefaultPipeline is the processor order used when none is configured.
var DefaultPipeline = []string{"chunker", "provenance"}

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("provenance", buildProvenance)
}

// NewDefaultPipeline builds the chunker and provenance processors with the
// given window.
func NewDefaultPipeline(size, overlap int) *Pipeline {
	r := NewRegistry()
	RegisterDefaults(r)
	p, err := r.BuildPipeline(DefaultPipeline, map[string]map[string]any{
		"chunker": {"chunk_size": size, "overlap": overlap},
	})
	if err != nil {
		// Built-ins are always registered.
		panic(err)
	}
	return p
}

// buildChunker creates a chunker from generic config.
// Supported config keys:
//   - chunk_size (int): characters per chunk (default: 1000)
//   - overlap (int): characters shared by adjacent chunks (default: 200)
func buildChunker(cfg map[string]any) (driven.ChunkProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok && overlap >= 0 {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

func buildProvenance(_ map[string]any) (driven.ChunkProcessor, error) {
	return provenance.New(), nil
}

// getIntFromConfig extracts an int from a generic config map.
// TOML and JSON decoding produce int64 and float64 respectively.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
