// Package office extracts text from Office documents: OOXML packages
// (docx, xlsx, pptx) and legacy OLE containers (doc, xls, ppt).
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
)

var _ driven.Extractor = (*Extractor)(nil)

// MinTextLength is the shortest result treated as a successful extraction.
const MinTextLength = 40

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Extractor scans Office containers for text runs.
type Extractor struct{}

// New creates an Office extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "office"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindDocument}
}

// MIMETypes returns the MIME types handled.
func (e *Extractor) MIMETypes() []string {
	return []string{
		"application/msword",
		"application/vnd.ms-excel",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract scans the container. Near-empty results are reported as
// unsupported rather than failed.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractionResult{}, err
	}

	var (
		text   string
		format string
	)
	switch {
	case bytes.HasPrefix(raw.Content, zipMagic):
		format = "OOXML"
		var err error
		text, err = ExtractOOXML(raw.Content)
		if err != nil {
			return domain.Unsupported("unreadable Office package: %v", err), nil
		}
	case bytes.HasPrefix(raw.Content, oleMagic):
		format = "legacy Office"
		text = ScanBinary(raw.Content)
	default:
		return domain.Unsupported("not an Office document (%s)", extractors.NormaliseMIME(raw.MIMEType)), nil
	}

	if len([]rune(strings.TrimSpace(text))) < MinTextLength {
		return domain.Unsupported("%s document has no extractable text", format), nil
	}
	return domain.Extracted(text), nil
}

// ExtractOOXML collects the text runs of every content part in document order.
func ExtractOOXML(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var parts []*zip.File
	for _, f := range reader.File {
		if isContentPart(f.Name) {
			parts = append(parts, f)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return partOrder(parts[i].Name) < partOrder(parts[j].Name)
	})

	var b strings.Builder
	if title := extractTitle(reader); title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	for _, f := range parts {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		if partText := textRuns(data); partText != "" {
			b.WriteString(partText)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// isContentPart reports whether a package part holds user text.
func isContentPart(name string) bool {
	switch {
	case name == "word/document.xml",
		strings.HasPrefix(name, "word/header"),
		strings.HasPrefix(name, "word/footer"),
		name == "word/footnotes.xml":
		return true
	case strings.HasPrefix(name, "ppt/slides/slide") && path.Ext(name) == ".xml":
		return true
	case strings.HasPrefix(name, "ppt/notesSlides/") && path.Ext(name) == ".xml":
		return true
	case name == "xl/sharedStrings.xml",
		strings.HasPrefix(name, "xl/worksheets/sheet") && path.Ext(name) == ".xml":
		return true
	}
	return false
}

// partOrder sorts the main body first and numbered parts numerically.
func partOrder(name string) string {
	group := "1"
	if name == "word/document.xml" {
		group = "0"
	}
	base := strings.TrimSuffix(name, ".xml")
	stem := strings.TrimRight(base, "0123456789")
	number := base[len(stem):]
	if len(number) < 8 {
		number = strings.Repeat("0", 8-len(number)) + number
	}
	return group + stem + number
}

// textRuns walks the XML collecting <w:t>, <a:t> and <t> character data.
// Paragraph, shared-string and row ends become line breaks.
func textRuns(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		b      strings.Builder
		inText int
		line   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			b.WriteString(s)
			b.WriteString("\n")
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tab":
				line.WriteString("\t")
			case "br":
				line.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case "p", "si", "row":
				flush()
			case "c":
				line.WriteString(" ")
			}
		case xml.CharData:
			if inText > 0 {
				line.Write(t)
			}
		}
	}
	flush()

	return strings.TrimSpace(b.String())
}

type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle reads dc:title from docProps/core.xml.
func extractTitle(reader *zip.Reader) string {
	for _, file := range reader.File {
		if file.Name != "docProps/core.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return ""
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return ""
		}

		var core coreXML
		if err := xml.Unmarshal(content, &core); err != nil {
			return ""
		}
		return strings.TrimSpace(core.Title)
	}
	return ""
}
