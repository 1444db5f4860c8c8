// Package image describes images through a vision-capable model.
package image

import (
	"context"
	"errors"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
)

var _ driven.Extractor = (*Extractor)(nil)

// DefaultPrompt asks for a description that retrieval can match against.
const DefaultPrompt = `Describe this image for a searchable knowledge base. Use these sections:
Objects: the people, objects and scenes shown.
Text: every piece of visible text, transcribed verbatim.
Data: for charts, tables or diagrams, the series, axes, values and relationships.
Layout: how the content is arranged.
Omit sections that do not apply. Do not speculate beyond what is visible.`

// DefaultMaxTokens caps the description length.
const DefaultMaxTokens = 1500

// Extractor turns images into structured text descriptions.
type Extractor struct {
	vision  driven.VisionProvider
	prompts driven.PromptStore
}

// New creates an image extractor. vision may be nil, in which case every
// image is reported unsupported.
func New(vision driven.VisionProvider, prompts driven.PromptStore) *Extractor {
	return &Extractor{vision: vision, prompts: prompts}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "image"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindImage}
}

// MIMETypes returns the MIME types handled.
func (e *Extractor) MIMETypes() []string {
	return []string{"image/*"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract asks the vision model for a description.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	if e.vision == nil {
		return domain.Unsupported("image description requires a vision model"), nil
	}
	if len(raw.Content) == 0 {
		return domain.ExtractionFailure("image has no content"), nil
	}

	mimeType := extractors.SniffMIME(raw.MIMEType, raw.Content)
	if !e.vision.SupportsMIMEType(mimeType) {
		return domain.Unsupported("image format %s", mimeType), nil
	}

	description, err := e.vision.Describe(ctx, driven.VisionInput{
		Data:      raw.Content,
		MIMEType:  mimeType,
		Prompt:    extractors.LoadPrompt(e.prompts, driven.PromptDescribeImage, DefaultPrompt),
		MaxTokens: DefaultMaxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ExtractionResult{}, ctxErr
		}
		if errors.Is(err, domain.ErrUnsupportedType) {
			return domain.Unsupported("image format %s", mimeType), nil
		}
		return domain.ExtractionFailure("vision model: %v", err), nil
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return domain.ExtractionFailure("vision model returned no description"), nil
	}
	return domain.Extracted(description), nil
}
