package website

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/connectors/web"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

type page struct {
	body        string
	contentType string
}

type fakeFetcher struct {
	pages   map[string]page
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, u string) (*driven.FetchResult, error) {
	f.fetched = append(f.fetched, u)
	p, ok := f.pages[u]
	if !ok {
		return nil, &web.StatusError{URL: u, StatusCode: 404}
	}
	ct := p.contentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	return &driven.FetchResult{URL: u, Body: []byte(p.body), ContentType: ct, StatusCode: 200}, nil
}

func htmlPage(title, body string) page {
	return page{body: "<html><head><title>" + title + "</title></head><body><main><p>" + body + "</p></main></body></html>"}
}

func raw(origin string) *domain.RawSource {
	return &domain.RawSource{Kind: domain.KindWebsite, Origin: origin}
}

func TestExtractor_SinglePageFallback(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		"https://acme.com/": htmlPage("Acme", "Operations consulting for retailers."),
	}}

	res, err := New(f, nil).Extract(context.Background(), raw("https://acme.com/"))
	require.NoError(t, err)

	require.True(t, res.OK(), res.Message())
	assert.Equal(t, "# Acme\nURL: https://acme.com/\n\nOperations consulting for retailers.", res.Text)
	assert.Equal(t, []string{"https://acme.com/sitemap.xml", "https://acme.com/"}, f.fetched)
}

func TestExtractor_CrawlsSitemapWithinCaps(t *testing.T) {
	var locs strings.Builder
	pages := map[string]page{}
	for i := 0; i < 30; i++ {
		u := fmt.Sprintf("https://acme.com/p%d", i)
		locs.WriteString("<url><loc>" + u + "</loc></url>")
		pages[u] = htmlPage(fmt.Sprintf("Page %d", i), fmt.Sprintf("content %d", i))
	}
	pages["https://acme.com/sitemap.xml"] = page{body: "<urlset>" + locs.String() + "</urlset>", contentType: "application/xml"}
	f := &fakeFetcher{pages: pages}

	res, err := New(f, nil, WithLimits(25, 3)).Extract(context.Background(), raw("https://acme.com"))
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Len(t, f.fetched, 4) // sitemap + 3 pages
	assert.Contains(t, res.Text, "# Page 0\nURL: https://acme.com/p0\n\ncontent 0")
	assert.Contains(t, res.Text, "# Page 2")
	assert.NotContains(t, res.Text, "# Page 3")
}

func TestExtractor_SkipsFailedAndNonHTMLPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		"https://acme.com/sitemap.xml": {body: "<urlset><url><loc>https://acme.com/a</loc></url>" +
			"<url><loc>https://acme.com/missing</loc></url><url><loc>https://acme.com/brochure.pdf</loc></url></urlset>"},
		"https://acme.com/a":            htmlPage("A", "alpha"),
		"https://acme.com/brochure.pdf": {body: "%PDF-1.7", contentType: "application/pdf"},
	}}

	res, err := New(f, nil).Extract(context.Background(), raw("https://acme.com"))
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Equal(t, "# A\nURL: https://acme.com/a\n\nalpha", res.Text)
}

func TestExtractor_AllFetchesFail(t *testing.T) {
	res, err := New(&fakeFetcher{}, nil).Extract(context.Background(), raw("https://down.example.com"))
	require.NoError(t, err)

	assert.Equal(t, domain.ExtractionFailed, res.Outcome)
	assert.Contains(t, res.Reason, "HTTP 404")
}

func TestExtractor_InvalidURL(t *testing.T) {
	res, err := New(&fakeFetcher{}, nil).Extract(context.Background(), raw("not a url"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionFailed, res.Outcome)
}

func TestExtractor_SuppliedHTML(t *testing.T) {
	f := &fakeFetcher{}
	r := raw("https://acme.com/team")
	r.Content = []byte(htmlPage("Team", "Our partners.").body)

	res, err := New(f, nil).Extract(context.Background(), r)
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Equal(t, "# Team\nURL: https://acme.com/team\n\nOur partners.", res.Text)
	assert.Empty(t, f.fetched)
}
