// Package text extracts plain text, markdown, CSV and JSON material.
package text

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
)

var _ driven.Extractor = (*Extractor)(nil)

// Extractor normalises textual material.
type Extractor struct{}

// New creates a text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "text"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindNote, domain.KindRecording, domain.KindDocument}
}

// MIMETypes returns the MIME types handled.
func (e *Extractor) MIMETypes() []string {
	return []string{"text/plain", "text/markdown", "text/x-markdown", "text/csv", "application/json"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract normalises the raw bytes according to their MIME type.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractionResult{}, err
	}
	if looksBinary(raw.Content) {
		return domain.Unsupported("binary content in %s source", raw.Kind), nil
	}

	content := strings.ToValidUTF8(string(raw.Content), "\uFFFD")

	switch extractors.NormaliseMIME(raw.MIMEType) {
	case "text/csv":
		if rendered, ok := renderCSV(content); ok {
			content = rendered
		}
	case "application/json":
		content = prettyJSON(content)
	}

	text := Normalise(content)
	if text == "" {
		return domain.Unsupported("no text content"), nil
	}
	return domain.Extracted(text), nil
}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// Normalise unifies line endings, strips control characters, trims trailing
// whitespace per line and collapses runs of blank lines.
func Normalise(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// renderCSV renders each record as "header: value" pairs, one record per
// paragraph, so every chunk carries the column names it needs.
func renderCSV(content string) (string, bool) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return "", false
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		for i, value := range record {
			name := "column " + string(rune('A'+i%26))
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(value))
		}
	}

	if b.Len() == 0 {
		return strings.Join(header, ", "), true
	}
	return b.String(), true
}

func prettyJSON(content string) string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(strings.TrimSpace(content)), "", "  "); err != nil {
		return content
	}
	return out.String()
}

// looksBinary reports whether the first KiB contains NUL bytes.
func looksBinary(b []byte) bool {
	if len(b) > 1024 {
		b = b[:1024]
	}
	return bytes.IndexByte(b, 0) >= 0
}
