// Package website crawls a site through its sitemap and converts each page
// to markdown.
package website

import (
	"context"
	"net/url"
	"strings"

	"github.com/custodia-labs/dossier/internal/connectors/web"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/extractors"
	"github.com/custodia-labs/dossier/internal/logger"
)

var _ driven.Extractor = (*Extractor)(nil)

// Crawl bounds.
const (
	DefaultMaxDiscovered = 50
	DefaultMaxFetched    = 20
)

var log = logger.With("extract.website")

// Extractor turns a website URL into one markdown document.
type Extractor struct {
	fetcher       driven.Fetcher
	converter     *web.Converter
	maxDiscovered int
	maxFetched    int
}

// Option configures the extractor.
type Option func(*Extractor)

// WithLimits overrides the discovered and fetched page caps.
func WithLimits(maxDiscovered, maxFetched int) Option {
	return func(e *Extractor) {
		if maxDiscovered > 0 {
			e.maxDiscovered = maxDiscovered
		}
		if maxFetched > 0 {
			e.maxFetched = maxFetched
		}
	}
}

// New creates a website extractor.
func New(fetcher driven.Fetcher, converter *web.Converter, opts ...Option) *Extractor {
	if converter == nil {
		converter = web.NewConverter()
	}
	e := &Extractor{
		fetcher:       fetcher,
		converter:     converter,
		maxDiscovered: DefaultMaxDiscovered,
		maxFetched:    DefaultMaxFetched,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "website"
}

// Kinds returns the kinds handled.
func (e *Extractor) Kinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindWebsite}
}

// MIMETypes returns nil: any origin of a website source is a URL.
func (e *Extractor) MIMETypes() []string {
	return nil
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract crawls the site at raw.Origin. When the caller already supplied
// the page HTML in raw.Content, that page is converted without fetching.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawSource) (domain.ExtractionResult, error) {
	origin := strings.TrimSpace(raw.Origin)
	if u, err := url.Parse(origin); err != nil || u.Host == "" {
		return domain.ExtractionFailure("invalid website URL %q", origin), nil
	}

	if len(raw.Content) > 0 {
		section, err := e.render(origin, raw.Content)
		if err != nil {
			return domain.ExtractionFailure("convert %s: %v", origin, err), nil
		}
		return domain.Extracted(section), nil
	}

	pages, err := web.Discover(ctx, e.fetcher, origin, e.maxDiscovered)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if len(pages) == 0 {
		pages = []string{origin}
	} else {
		log.Debug("sitemap for %s lists %d pages", origin, len(pages))
	}
	if len(pages) > e.maxFetched {
		pages = pages[:e.maxFetched]
	}

	var (
		sections []string
		lastErr  error
	)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return domain.ExtractionResult{}, err
		}

		section, err := e.fetchPage(ctx, page)
		if err != nil {
			log.Warn("skipping %s: %v", page, err)
			lastErr = err
			continue
		}
		if section != "" {
			sections = append(sections, section)
		}
	}

	if len(sections) == 0 {
		if lastErr != nil {
			return domain.ExtractionFailure("fetch %s: %v", origin, lastErr), nil
		}
		return domain.Unsupported("no readable pages at %s", origin), nil
	}
	return domain.Extracted(strings.Join(sections, "\n\n")), nil
}

func (e *Extractor) fetchPage(ctx context.Context, page string) (string, error) {
	res, err := e.fetcher.Fetch(ctx, page)
	if err != nil {
		return "", err
	}

	mimeType := extractors.NormaliseMIME(res.ContentType)
	if mimeType != "" && mimeType != "text/html" && mimeType != "application/xhtml+xml" {
		log.Debug("skipping %s: content type %s", page, mimeType)
		return "", nil
	}

	pageURL := page
	if res.URL != "" {
		pageURL = res.URL
	}
	return e.render(pageURL, res.Body)
}

func (e *Extractor) render(pageURL string, body []byte) (string, error) {
	page, err := e.converter.Convert(body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return "", nil
	}
	return web.RenderPage(page.Title, pageURL, page.Markdown), nil
}
