package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	store *Store
}

// Replace swaps all chunks of a source.
func (s *ChunkStore) Replace(_ context.Context, sourceID string, chunks []domain.Chunk) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.sources[sourceID]; !ok {
		return fmt.Errorf("replacing chunks: %w: source %s", domain.ErrNotFound, sourceID)
	}

	copied := make([]domain.Chunk, 0, len(chunks))
	now := s.store.now()
	for _, c := range chunks {
		if c.SourceID != "" && c.SourceID != sourceID {
			return fmt.Errorf("%w: chunk %s belongs to source %s", domain.ErrInvalidInput, c.ID, c.SourceID)
		}
		c = cloneChunk(c)
		c.SourceID = sourceID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		copied = append(copied, c)
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })

	if len(copied) == 0 {
		delete(s.store.chunks, sourceID)
		return nil
	}
	s.store.chunks[sourceID] = copied
	return nil
}

// ListBySource returns the chunks of a source ordered by index.
func (s *ChunkStore) ListBySource(_ context.Context, sourceID string) ([]domain.Chunk, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	stored := s.store.chunks[sourceID]
	out := make([]domain.Chunk, 0, len(stored))
	for _, c := range stored {
		out = append(out, cloneChunk(c))
	}
	return out, nil
}

// CountBySource returns the number of chunks and embedded chunks of a source.
func (s *ChunkStore) CountBySource(_ context.Context, sourceID string) (total, embedded int, err error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	for _, c := range s.store.chunks[sourceID] {
		total++
		if c.HasEmbedding() {
			embedded++
		}
	}
	return total, embedded, nil
}

// SemanticCandidates returns embedded chunks of completed, included sources in scope.
func (s *ChunkStore) SemanticCandidates(_ context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var out []domain.Candidate
	for _, source := range s.eligible(scope) {
		for _, c := range s.store.chunks[source.ID] {
			if !c.HasEmbedding() {
				continue
			}
			out = append(out, domain.Candidate{
				Chunk:           cloneChunk(c),
				SourceName:      source.Name,
				Kind:            source.Kind,
				Origin:          source.Origin,
				SourceUpdatedAt: source.UpdatedAt,
			})
		}
	}
	return out, nil
}

// LexicalMatches returns completed, included sources in scope whose chunk
// text, content or name contains query case-insensitively, newest first.
func (s *ChunkStore) LexicalMatches(
	_ context.Context, scope domain.Scope, query string, exclude []string, limit int,
) ([]domain.LexicalMatch, error) {
	if query == "" {
		return nil, nil
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var out []domain.LexicalMatch
	for _, source := range s.eligible(scope) {
		if skip[source.ID] {
			continue
		}

		m := domain.LexicalMatch{
			SourceID:   source.ID,
			SourceName: source.Name,
			Kind:       source.Kind,
			Origin:     source.Origin,
			ClientID:   cloneString(source.ClientID),
			UpdatedAt:  source.UpdatedAt,
		}

		matched := false
		for _, c := range s.store.chunks[source.ID] {
			if containsFold(c.Text, query) {
				m.ChunkID, m.ChunkIndex, m.Text = c.ID, c.Index, c.Text
				matched = true
				break
			}
		}
		if !matched && containsFold(source.ContentText(), query) {
			m.Text = source.ContentText()
			matched = true
		}
		if !matched && containsFold(source.Name, query) {
			matched = true
		}
		if !matched {
			continue
		}

		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// eligible returns completed, included sources in scope, most recently
// updated first. Callers hold the read lock.
func (s *ChunkStore) eligible(scope domain.Scope) []domain.Source {
	var sources []domain.Source
	for _, source := range s.store.sources {
		if source.Status != domain.StatusCompleted || source.ExcludeFromRag {
			continue
		}
		if !inScope(&source, scope) {
			continue
		}
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].UpdatedAt.Equal(sources[j].UpdatedAt) {
			return sources[i].UpdatedAt.After(sources[j].UpdatedAt)
		}
		return sources[i].ID < sources[j].ID
	})
	return sources
}

// Ensure InsightStore implements the interface.
var _ driven.InsightStore = (*InsightStore)(nil)

// InsightStore is an in-memory implementation of driven.InsightStore.
type InsightStore struct {
	store *Store
}

// Replace swaps all insights of a source.
func (s *InsightStore) Replace(_ context.Context, sourceID string, insights []domain.Insight) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.sources[sourceID]; !ok {
		return fmt.Errorf("replacing insights: %w: source %s", domain.ErrNotFound, sourceID)
	}

	copied := make([]domain.Insight, 0, len(insights))
	now := s.store.now()
	for _, in := range insights {
		in.SourceID = sourceID
		in.ClientID = cloneString(in.ClientID)
		if in.CreatedAt.IsZero() {
			in.CreatedAt = now
		}
		copied = append(copied, in)
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	s.store.insights[sourceID] = copied
	return nil
}

// ListBySource returns the insights of a source ordered by index.
func (s *InsightStore) ListBySource(_ context.Context, sourceID string) ([]domain.Insight, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	stored := s.store.insights[sourceID]
	out := make([]domain.Insight, len(stored))
	for i, in := range stored {
		in.ClientID = cloneString(in.ClientID)
		out[i] = in
	}
	return out, nil
}
