// Package web provides the network side of website extraction: an
// SSRF-guarded fetcher, sitemap discovery and HTML to markdown conversion.
package web
