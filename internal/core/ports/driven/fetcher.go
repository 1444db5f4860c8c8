package driven

import (
	"context"
	"time"
)

// FetchResult contains the result of fetching a web resource.
type FetchResult struct {
	URL          string
	Body         []byte
	ContentType  string
	StatusCode   int
	LastModified time.Time
}

// Fetcher retrieves web resources for website extraction.
type Fetcher interface {
	// Fetch retrieves the resource at url. Non-2xx responses are errors.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}
