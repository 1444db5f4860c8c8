// Package email extracts headers and body text from RFC 822 messages.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/custodia-labs/dossier/internal/connectors/web"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors/text"
)

var _ driven.Extractor = (*Extractor)(nil)

// maxDepth bounds nested multipart recursion.
const maxDepth = 8

// Extractor handles forwarded emails.
type Extractor struct {
	converter *web.Converter
}

// New creates an email extractor. HTML-only bodies are converted with
// converter; nil falls back to tag stripping.
func New(converter *web.Converter) *Extractor {
	return &Extractor{converter: converter}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "email"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindEmail, domain.KindDocument}
}

// MIMETypes returns the MIME types handled.
func (e *Extractor) MIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract renders From/To/Date/Subject lines followed by the body. Plain
// text parts are preferred over HTML.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractionResult{}, err
	}
	if len(raw.Content) == 0 {
		return domain.Unsupported("empty message"), nil
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return domain.ExtractionFailure("parse message: %v", err), nil
	}

	body := e.body(textproto.MIMEHeader(msg.Header), msg.Body, 0)

	var b strings.Builder
	for _, name := range []string{"From", "To", "Cc", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(name)); v != "" {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	out := text.Normalise(b.String())
	if out == "" {
		return domain.Unsupported("message has no readable headers or body"), nil
	}
	return domain.Extracted(out), nil
}

// decodeHeader decodes RFC 2047 encoded words.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func (e *Extractor) body(header textproto.MIMEHeader, r io.Reader, depth int) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			return ""
		}
		return e.multipart(r, params["boundary"], depth+1)
	}

	content, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), r))
	if err != nil {
		return ""
	}

	switch mediaType {
	case "text/html":
		return e.html(content)
	case "text/plain", "":
		return strings.ToValidUTF8(string(content), "\uFFFD")
	default:
		return ""
	}
}

func (e *Extractor) multipart(r io.Reader, boundary string, depth int) string {
	if boundary == "" {
		return ""
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		if isAttachment(part.Header) {
			part.Close()
			continue
		}

		mediaType, _, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "text/plain"
		}

		content := strings.TrimSpace(e.body(part.Header, part, depth))
		part.Close()
		if content == "" {
			continue
		}

		if mediaType == "text/html" {
			htmlParts = append(htmlParts, content)
		} else {
			textParts = append(textParts, content)
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n\n")
	}
	return strings.Join(htmlParts, "\n\n")
}

func (e *Extractor) html(content []byte) string {
	if e.converter != nil {
		if page, err := e.converter.Convert(content); err == nil && page.Markdown != "" {
			return page.Markdown
		}
	}
	return stripHTMLTags(string(content))
}

func isAttachment(header textproto.MIMEHeader) bool {
	disposition, _, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// stripHTMLTags removes HTML tags for basic text extraction.
func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false

	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	var cleaned []string
	for _, line := range strings.Split(result.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
