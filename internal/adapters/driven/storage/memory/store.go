// Package memory provides in-memory implementations of the storage ports.
// The stores share one Store so chunk and insight lookups can see their
// parent sources, mirroring the sqlite adapter's joins and cascades.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Store holds sources, chunks and insights.
type Store struct {
	mu       sync.RWMutex
	sources  map[string]domain.Source
	chunks   map[string][]domain.Chunk
	insights map[string][]domain.Insight
	now      func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sources:  make(map[string]domain.Source),
		chunks:   make(map[string][]domain.Chunk),
		insights: make(map[string][]domain.Insight),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SourceStore returns the source store view.
func (s *Store) SourceStore() driven.SourceStore {
	return &SourceStore{store: s}
}

// ChunkStore returns the chunk store view.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &ChunkStore{store: s}
}

// InsightStore returns the insight store view.
func (s *Store) InsightStore() driven.InsightStore {
	return &InsightStore{store: s}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore is an in-memory implementation of driven.SourceStore.
type SourceStore struct {
	store *Store
}

// Create stores a new source.
func (s *SourceStore) Create(_ context.Context, source *domain.Source) error {
	if source == nil {
		return domain.ErrInvalidInput
	}
	if source.Status == "" {
		source.Status = domain.StatusPending
	}
	if err := source.Validate(); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, exists := s.store.sources[source.ID]; exists {
		return fmt.Errorf("%w: source %s already exists", domain.ErrInvalidInput, source.ID)
	}

	now := s.store.now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	s.store.sources[source.ID] = cloneSource(*source)
	return nil
}

// Get retrieves a source by ID.
func (s *SourceStore) Get(_ context.Context, id, ownerID string) (*domain.Source, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	source, ok := s.store.sources[id]
	if !ok || source.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	out := cloneSource(source)
	return &out, nil
}

// List returns sources matching the filter, newest first.
func (s *SourceStore) List(_ context.Context, filter domain.SourceFilter) ([]domain.Source, error) {
	if filter.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrInvalidInput)
	}
	scope := domain.Scope{OwnerID: filter.OwnerID, ClientID: filter.ClientID, Kinds: filter.Kinds}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Source
	for _, source := range s.store.sources {
		if !inScope(&source, scope) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, source.Status) {
			continue
		}
		result = append(result, cloneSource(source))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateContent sets the extracted content.
func (s *SourceStore) UpdateContent(_ context.Context, id, ownerID, text string) error {
	return s.update(id, ownerID, func(src *domain.Source) error {
		src.Content = &text
		return nil
	})
}

// SetSummary records a generated summary.
func (s *SourceStore) SetSummary(_ context.Context, id, ownerID, summary string) error {
	return s.update(id, ownerID, func(src *domain.Source) error {
		src.Summary = &summary
		return nil
	})
}

// SetGovernance sets the exclusion flag. Including a source clears its category.
func (s *SourceStore) SetGovernance(_ context.Context, id, ownerID string, exclude bool, category string) error {
	return s.update(id, ownerID, func(src *domain.Source) error {
		src.ExcludeFromRag = exclude
		src.Category = nil
		if exclude {
			src.Category = domain.StringPtr(category)
		}
		return nil
	})
}

// BeginReprocess resets the source to processing from any state.
func (s *SourceStore) BeginReprocess(_ context.Context, id, ownerID string) error {
	return s.update(id, ownerID, func(src *domain.Source) error {
		src.Status = domain.StatusProcessing
		src.LastError = nil
		return nil
	})
}

// SetStatus moves the source to status when the current state allows it.
func (s *SourceStore) SetStatus(_ context.Context, id, ownerID string, status domain.SourceStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	return s.update(id, ownerID, func(src *domain.Source) error {
		if !src.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, src.Status, status)
		}
		if status == domain.StatusCompleted && src.Content == nil && !src.ExcludeFromRag {
			return fmt.Errorf("%w: completed source has no content", domain.ErrInvalidInput)
		}
		src.Status = status
		return nil
	})
}

// SetError marks the source failed with message.
func (s *SourceStore) SetError(_ context.Context, id, ownerID, message string) error {
	if message == "" {
		message = "unknown error"
	}
	return s.update(id, ownerID, func(src *domain.Source) error {
		if !src.Status.CanTransitionTo(domain.StatusFailed) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, src.Status, domain.StatusFailed)
		}
		src.Status = domain.StatusFailed
		src.LastError = &message
		return nil
	})
}

// Delete removes the source with its chunks and insights.
func (s *SourceStore) Delete(_ context.Context, id, ownerID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	source, ok := s.store.sources[id]
	if !ok || source.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.store.sources, id)
	delete(s.store.chunks, id)
	delete(s.store.insights, id)
	return nil
}

// update applies fn under the write lock; the source is only saved when fn succeeds.
func (s *SourceStore) update(id, ownerID string, fn func(*domain.Source) error) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	source, ok := s.store.sources[id]
	if !ok || source.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	source = cloneSource(source)
	if err := fn(&source); err != nil {
		return err
	}
	source.UpdatedAt = s.store.now()
	s.store.sources[id] = source
	return nil
}

func inScope(source *domain.Source, scope domain.Scope) bool {
	if source.OwnerID != scope.OwnerID {
		return false
	}
	if scope.ClientID != nil && source.ClientKey() != *scope.ClientID {
		return false
	}
	if len(scope.Kinds) > 0 {
		for _, k := range scope.Kinds {
			if source.Kind == k {
				return true
			}
		}
		return false
	}
	return true
}

func containsStatus(statuses []domain.SourceStatus, status domain.SourceStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSource(s domain.Source) domain.Source {
	s.ClientID = cloneString(s.ClientID)
	s.Content = cloneString(s.Content)
	s.Summary = cloneString(s.Summary)
	s.LastError = cloneString(s.LastError)
	s.Category = cloneString(s.Category)
	return s
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.ClientID = cloneString(c.ClientID)
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	return c
}
