package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// IngestionService accepts raw material and drives it through the pipeline.
type IngestionService interface {
	// Ingest creates a source in the processing state, schedules it and
	// returns without waiting for extraction.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.Source, error)

	// BulkImport ingests requests one after another with a pause between
	// items. Sources accepted before a failure are still returned.
	BulkImport(ctx context.Context, reqs []domain.IngestRequest) ([]*domain.Source, error)

	// Reprocess resets a source to processing and schedules it again.
	Reprocess(ctx context.Context, id, ownerID string) (*domain.Source, error)

	// Get returns a source with its chunk counts.
	Get(ctx context.Context, id, ownerID string) (*SourceDetails, error)

	// List returns sources matching the filter.
	List(ctx context.Context, filter domain.SourceFilter) ([]domain.Source, error)

	// SetGovernance includes or excludes a source from retrieval.
	SetGovernance(ctx context.Context, id, ownerID string, exclude bool, category string) error

	// Delete removes a source with its chunks and insights.
	Delete(ctx context.Context, id, ownerID string) error

	// Active returns the jobs currently running.
	Active() []JobStatus

	// Drain blocks until queued work finishes or ctx is done.
	Drain(ctx context.Context) error
}

// SourceDetails is a source with its derived records.
type SourceDetails struct {
	Source         domain.Source
	ChunkCount     int
	EmbeddedChunks int
	Insights       []domain.Insight
}

// JobStatus describes a running pipeline job.
type JobStatus struct {
	SourceID  string
	Stage     string
	StartedAt time.Time
}

// Pipeline stage names reported in JobStatus.
const (
	StageQueued     = "queued"
	StageExtracting = "extracting"
	StageEnriching  = "enriching"
)
