package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// Extractor turns raw material of one or more kinds into plain text.
//
// Unreadable or unsupported material is reported through the returned
// ExtractionResult, not through the error. The error is reserved for
// unexpected failures such as a cancelled context.
type Extractor interface {
	// Name identifies the extractor in logs and metrics.
	Name() string

	// Kinds returns the source kinds this extractor handles.
	Kinds() []domain.SourceKind

	// MIMETypes returns the MIME types this extractor handles.
	// Empty slice means any MIME type of its kinds.
	MIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Kind and MIME specific extractors should return 50-89.
	// Fallback extractors should return 1-9.
	Priority() int

	// Extract reads the raw source.
	Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error)
}

// ExtractorRegistry selects the extractor for a raw source.
type ExtractorRegistry interface {
	// Register adds an extractor.
	Register(extractor Extractor)

	// Lookup returns the best extractor for kind and MIME type, or nil.
	Lookup(kind domain.SourceKind, mimeType string) Extractor

	// Extract dispatches to the selected extractor. When none matches the
	// result is domain.Unsupported.
	Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error)
}
