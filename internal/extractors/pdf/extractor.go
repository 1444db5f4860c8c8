// Package pdf extracts embedded PDF text and, when a vision model is
// available, a description of the document's charts and diagrams.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/logger"
)

var _ driven.Extractor = (*Extractor)(nil)

const (
	mimePDF = "application/pdf"

	// PageSeparator joins the text of consecutive pages.
	PageSeparator = "\n\n---\n\n"

	// VisualHeading introduces the vision model's description.
	VisualHeading = "## Visual content"
)

// DefaultPrompt asks for the visual material text extraction misses.
const DefaultPrompt = `This PDF is being indexed for search. Its embedded text is extracted separately.
Describe only its visual content: charts, graphs, diagrams, tables rendered as images, and figures.
For each, give its title, what it shows, and the key values or relationships.
If the document has no visual content, reply with exactly: NONE`

var log = logger.With("extract.pdf")

// Extractor reads PDF documents.
type Extractor struct {
	vision  driven.VisionProvider
	prompts driven.PromptStore
}

// New creates a PDF extractor. vision may be nil for text-only extraction.
func New(vision driven.VisionProvider, prompts driven.PromptStore) *Extractor {
	return &Extractor{vision: vision, prompts: prompts}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "pdf"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindDocument}
}

// MIMETypes returns the MIME types handled.
func (e *Extractor) MIMETypes() []string {
	return []string{mimePDF}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 60
}

// Extract reads page text, then appends the visual pass. A failed visual
// pass degrades to text only.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	text, pages, textErr := ExtractText(raw.Content)
	if textErr != nil {
		log.Warn("text extraction for %s failed: %v", raw.Name, textErr)
	}

	visual := e.describe(ctx, raw)
	if err := ctx.Err(); err != nil {
		return domain.ExtractionResult{}, err
	}

	switch {
	case text != "" && visual != "":
		return domain.Extracted(text + "\n\n" + VisualHeading + "\n\n" + visual), nil
	case text != "":
		return domain.Extracted(text), nil
	case visual != "":
		return domain.Extracted(VisualHeading + "\n\n" + visual), nil
	case textErr != nil:
		return domain.ExtractionFailure("read PDF: %v", textErr), nil
	default:
		return domain.Unsupported("PDF with %d pages has no extractable text", pages), nil
	}
}

// describe runs the vision pass. Any failure yields "".
func (e *Extractor) describe(ctx context.Context, raw *domain.RawSource) string {
	if e.vision == nil || !e.vision.SupportsMIMEType(mimePDF) {
		return ""
	}

	description, err := e.vision.Describe(ctx, driven.VisionInput{
		Data:     raw.Content,
		MIMEType: mimePDF,
		Prompt:   extractors.LoadPrompt(e.prompts, driven.PromptDescribeDocument, DefaultPrompt),
	})
	if err != nil {
		log.Warn("visual pass for %s failed, keeping text only: %v", raw.Name, err)
		return ""
	}

	description = strings.TrimSpace(description)
	if strings.EqualFold(description, "NONE") {
		return ""
	}
	return description
}

// ExtractText returns the plain text of every readable page joined by
// PageSeparator, and the page count.
func ExtractText(content []byte) (text string, pages int, err error) {
	defer func() {
		// The parser panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(newBytesReaderAt(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}

	var b strings.Builder
	pages = reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteString(PageSeparator)
		}
		b.WriteString(pageText)
	}

	return b.String(), pages, nil
}

// bytesReaderAt implements io.ReaderAt for a byte slice.
type bytesReaderAt struct {
	data []byte
}

func newBytesReaderAt(data []byte) *bytesReaderAt {
	return &bytesReaderAt{data: data}
}

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
