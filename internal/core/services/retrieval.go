package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
	"github.com/custodia-labs/dossier/internal/metrics"
)

// Ensure Retrieval implements the interface.
var _ driving.RetrievalService = (*Retrieval)(nil)

// MaxSearchLimit caps the number of results a single search returns.
const MaxSearchLimit = 100

// Notices returned with searches that could not rank semantically.
const (
	NoticeNoEmbedder       = "semantic search is unavailable because no embedding provider is configured"
	NoticeEmbedFailed      = "the query could not be embedded; showing literal matches only"
	NoticeNoEmbeddedChunks = "no embedded content in scope; enable hybrid search or reprocess sources once an embedding provider is configured"
)

// Retrieval ranks stored chunks by cosine similarity and, in hybrid mode,
// tops the results up with literal matches.
type Retrieval struct {
	chunks   driven.ChunkStore
	embedder driven.EmbeddingProvider
	defaults domain.RetrievalSettings
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// RetrievalOption configures Retrieval.
type RetrievalOption func(*Retrieval)

// WithQueryEmbedder sets the provider used to embed queries. It must be the
// provider chunks were embedded with.
func WithQueryEmbedder(e driven.EmbeddingProvider) RetrievalOption {
	return func(r *Retrieval) {
		r.embedder = e
	}
}

// WithRetrievalDefaults sets the limit and threshold used when a query
// leaves them unset.
func WithRetrievalDefaults(s domain.RetrievalSettings) RetrievalOption {
	return func(r *Retrieval) {
		r.defaults = s
	}
}

// NewRetrieval creates a retrieval engine over chunks.
func NewRetrieval(chunks driven.ChunkStore, opts ...RetrievalOption) *Retrieval {
	r := &Retrieval{
		chunks:   chunks,
		defaults: domain.DefaultSettings().Retrieval,
		metrics:  metrics.Get(),
		log:      logger.With("retrieval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaults.Limit <= 0 {
		r.defaults.Limit = domain.DefaultSearchLimit
	}
	return r
}

// Search ranks chunks in the query scope.
func (r *Retrieval) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	start := time.Now()
	defer func() {
		r.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(q.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = r.defaults.Limit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	minSimilarity := r.defaults.MinSimilarity
	if q.MinSimilarity != nil {
		minSimilarity = *q.MinSimilarity
	}
	if minSimilarity < 0 || minSimilarity > 1 || math.IsNaN(minSimilarity) {
		return nil, fmt.Errorf("%w: minSimilarity must be between 0 and 1", domain.ErrInvalidInput)
	}

	mode := "semantic"
	if q.Hybrid {
		mode = "hybrid"
	}
	r.metrics.SearchRequests.WithLabelValues(mode).Inc()

	scope := q.Scope()
	resp := &domain.SearchResponse{Results: []domain.SearchResult{}}

	if r.embedder == nil {
		if !q.Hybrid {
			return nil, domain.ErrEmbeddingUnavailable
		}
		resp.Notice = NoticeNoEmbedder
	} else {
		results, notice, err := r.semantic(ctx, scope, text, minSimilarity, limit, q.Hybrid)
		if err != nil {
			return nil, err
		}
		resp.Results = results
		resp.Notice = notice
	}

	if q.Hybrid && len(resp.Results) < limit {
		lexical, err := r.lexical(ctx, scope, text, resp.Results, limit-len(resp.Results))
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, lexical...)
	}

	for _, res := range resp.Results {
		r.metrics.SearchResults.WithLabelValues(string(res.MatchType)).Inc()
	}
	r.log.Debug("%s search for %q returned %d results", mode, text, len(resp.Results))
	return resp, nil
}

func (r *Retrieval) semantic(
	ctx context.Context, scope domain.Scope, text string, minSimilarity float64, limit int, hybrid bool,
) ([]domain.SearchResult, string, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		if !hybrid {
			return nil, "", fmt.Errorf("embed query: %w", err)
		}
		r.log.Warn("embed query: %v", err)
		return []domain.SearchResult{}, NoticeEmbedFailed, nil
	}

	candidates, err := r.chunks.SemanticCandidates(ctx, scope)
	if err != nil {
		return nil, "", fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 && !hybrid {
		return []domain.SearchResult{}, NoticeNoEmbeddedChunks, nil
	}

	results := RankCandidates(vec, candidates, minSimilarity, limit)
	return results, "", nil
}

// RankCandidates scores candidates against the query vector, drops those
// below minSimilarity and returns at most limit results, best first. Ties
// keep candidate order. Candidates of another dimension are skipped.
func RankCandidates(query []float32, candidates []domain.Candidate, minSimilarity float64, limit int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Chunk.Embedding) != len(query) {
			continue
		}
		score := Similarity(query, c.Chunk.Embedding)
		if score < minSimilarity {
			continue
		}
		results = append(results, domain.SearchResult{
			SourceID:   c.Chunk.SourceID,
			ChunkID:    c.Chunk.ID,
			SourceName: c.SourceName,
			Kind:       c.Kind,
			Text:       c.Chunk.Text,
			Score:      score,
			MatchType:  domain.MatchSemantic,
			Provenance: domain.Provenance{
				Origin:     c.Origin,
				ClientID:   c.Chunk.ClientID,
				ChunkIndex: c.Chunk.Index,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (r *Retrieval) lexical(
	ctx context.Context, scope domain.Scope, text string, found []domain.SearchResult, limit int,
) ([]domain.SearchResult, error) {
	seen := make(map[string]bool, len(found))
	exclude := make([]string, 0, len(found))
	for _, res := range found {
		if !seen[res.SourceID] {
			seen[res.SourceID] = true
			exclude = append(exclude, res.SourceID)
		}
	}

	matches, err := r.chunks.LexicalMatches(ctx, scope, text, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical matches: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		snippetSource := m.Text
		if snippetSource == "" {
			snippetSource = m.SourceName
		}
		results = append(results, domain.SearchResult{
			SourceID:   m.SourceID,
			ChunkID:    m.ChunkID,
			SourceName: m.SourceName,
			Kind:       m.Kind,
			Text:       Snippet(snippetSource, text, domain.SnippetRadius),
			Score:      domain.LexicalScore,
			MatchType:  domain.MatchLexical,
			Provenance: domain.Provenance{
				Origin:     m.Origin,
				ClientID:   m.ClientID,
				ChunkIndex: m.ChunkIndex,
			},
		})
	}
	return results, nil
}

// Similarity returns the cosine similarity of a and b clamped to [0, 1].
// Mismatched or zero vectors score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(cos) || cos < 0:
		return 0
	case cos > 1:
		return 1
	default:
		return cos
	}
}

// Snippet returns the text within radius characters either side of the
// first case-insensitive occurrence of query. Without a match it returns
// the leading 2*radius characters.
func Snippet(text, query string, radius int) string {
	runes := []rune(text)
	needle := []rune(query)

	idx := indexFold(runes, needle)
	if idx < 0 {
		if len(runes) > 2*radius {
			return string(runes[:2*radius])
		}
		return text
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + radius
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

// indexFold finds needle in haystack comparing runes case-insensitively.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, n := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(n) {
				continue outer
			}
		}
		return i
	}
	return -1
}
