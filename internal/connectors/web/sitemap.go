package web

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// maxSitemapDepth bounds sitemap index nesting.
const maxSitemapDepth = 3

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover reads /sitemap.xml of siteURL's host, following nested sitemap
// indexes, and returns at most limit page URLs on the same host in sitemap
// order. A missing or unreadable sitemap returns no URLs and no error.
func Discover(ctx context.Context, fetcher driven.Fetcher, siteURL string, limit int) ([]string, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return nil, err
	}
	root := (&url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/sitemap.xml"}).String()

	d := &discovery{
		fetcher: fetcher,
		site:    siteURL,
		limit:   limit,
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
	}
	d.walk(ctx, root, 0)

	return d.urls, ctx.Err()
}

type discovery struct {
	fetcher driven.Fetcher
	site    string
	limit   int
	urls    []string
	seen    map[string]bool
	visited map[string]bool
}

func (d *discovery) full() bool {
	return d.limit > 0 && len(d.urls) >= d.limit
}

func (d *discovery) walk(ctx context.Context, sitemapURL string, depth int) {
	if depth >= maxSitemapDepth || d.full() || d.visited[sitemapURL] || ctx.Err() != nil {
		return
	}
	d.visited[sitemapURL] = true

	res, err := d.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return
	}

	var index sitemapIndex
	if err := xml.Unmarshal(res.Body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc != "" && SameHost(loc, d.site) {
				d.walk(ctx, loc, depth+1)
			}
		}
		return
	}

	var set urlSet
	if err := xml.Unmarshal(res.Body, &set); err != nil {
		return
	}
	for _, u := range set.URLs {
		if d.full() {
			return
		}
		loc := strings.TrimSpace(u.Loc)
		if loc == "" || d.seen[loc] || !SameHost(loc, d.site) {
			continue
		}
		d.seen[loc] = true
		d.urls = append(d.urls, loc)
	}
}
