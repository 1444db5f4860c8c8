package web

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// mapFetcher serves bodies from a map; missing URLs are 404s.
type mapFetcher struct {
	pages   map[string]string
	fetched []string
}

func (m *mapFetcher) Fetch(_ context.Context, u string) (*driven.FetchResult, error) {
	m.fetched = append(m.fetched, u)
	body, ok := m.pages[u]
	if !ok {
		return nil, &StatusError{URL: u, StatusCode: 404}
	}
	return &driven.FetchResult{URL: u, Body: []byte(body), StatusCode: 200}, nil
}

func urlset(urls ...string) string {
	s := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, u := range urls {
		s += "<url><loc>" + u + "</loc></url>"
	}
	return s + "</urlset>"
}

func TestDiscover_URLSet(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://acme.com/sitemap.xml": urlset(
			"https://acme.com/",
			"https://acme.com/about",
			"https://other.com/elsewhere",
			"https://acme.com/about",
		),
	}}

	urls, err := Discover(context.Background(), f, "https://acme.com/services", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.com/", "https://acme.com/about"}, urls)
}

func TestDiscover_NestedIndex(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://acme.com/sitemap.xml": `<sitemapindex><sitemap><loc>https://acme.com/pages.xml</loc></sitemap>` +
			`<sitemap><loc>https://cdn.other.com/s.xml</loc></sitemap>` +
			`<sitemap><loc>https://acme.com/blog.xml</loc></sitemap></sitemapindex>`,
		"https://acme.com/pages.xml": urlset("https://acme.com/a", "https://acme.com/b"),
		"https://acme.com/blog.xml":  urlset("https://acme.com/blog/1"),
	}}

	urls, err := Discover(context.Background(), f, "https://acme.com", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.com/a", "https://acme.com/b", "https://acme.com/blog/1"}, urls)
	assert.NotContains(t, f.fetched, "https://cdn.other.com/s.xml")
}

func TestDiscover_Cap(t *testing.T) {
	var urls []string
	for i := 0; i < 80; i++ {
		urls = append(urls, fmt.Sprintf("https://acme.com/p/%d", i))
	}
	f := &mapFetcher{pages: map[string]string{"https://acme.com/sitemap.xml": urlset(urls...)}}

	got, err := Discover(context.Background(), f, "https://acme.com", 50)
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, "https://acme.com/p/49", got[49])
}

func TestDiscover_NoSitemap(t *testing.T) {
	got, err := Discover(context.Background(), &mapFetcher{}, "https://acme.com", 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}
