package extractors

import (
	"context"
	"mime"
	"strings"
	"sync"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry selects extractors by kind and MIME type.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

// NewRegistry creates a registry holding the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, extractor)
}

// Lookup returns the best extractor for kind and MIME type, or nil.
// Preference order: kind and MIME both accepted, MIME only, then kind only
// (when the extractor takes any MIME type or none was given). Ties are
// broken by priority.
func (r *Registry) Lookup(kind domain.SourceKind, mimeType string) driven.Extractor {
	mimeType = NormaliseMIME(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.Extractor
	bestScore := -1

	for _, e := range r.extractors {
		kindOK := handlesKind(e, kind)
		types := e.MIMETypes()
		mimeOK := mimeType != "" && handlesMIME(types, mimeType)

		score := -1
		switch {
		case kindOK && mimeOK:
			score = 2000 + e.Priority()
		case mimeOK:
			score = 1000 + e.Priority()
		case kindOK && (len(types) == 0 || mimeType == ""):
			score = e.Priority()
		}

		if score > bestScore {
			best, bestScore = e, score
		}
	}

	return best
}

// Extract dispatches to the selected extractor.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	if raw == nil {
		return domain.ExtractionResult{}, domain.ErrInvalidInput
	}

	e := r.Lookup(raw.Kind, raw.MIMEType)
	if e == nil {
		if raw.MIMEType != "" {
			return domain.Unsupported("no extractor for %s (%s)", raw.Kind, NormaliseMIME(raw.MIMEType)), nil
		}
		return domain.Unsupported("no extractor for %s", raw.Kind), nil
	}
	return e.Extract(ctx, raw)
}

// Names lists registered extractor names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}

func handlesKind(e driven.Extractor, kind domain.SourceKind) bool {
	for _, k := range e.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func handlesMIME(types []string, mimeType string) bool {
	for _, t := range types {
		if t == mimeType {
			return true
		}
		if strings.HasSuffix(t, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(t, "*")) {
			return true
		}
	}
	return false
}

// NormaliseMIME lowercases a content type and drops its parameters.
func NormaliseMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}
