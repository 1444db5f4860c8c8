package domain

// RawSource is the material a producer hands to the pipeline.
// Content may be nil when the origin is fetched (websites, repositories)
// or read from a blob store.
type RawSource struct {
	SourceID string
	OwnerID  string
	ClientID *string
	Kind     SourceKind
	Name     string
	Origin   string
	MIMEType string
	Content  []byte
}

// IngestRequest is what upstream producers submit for ingestion.
type IngestRequest struct {
	OwnerID        string
	ClientID       *string
	Kind           SourceKind
	Name           string
	Origin         string
	MIMEType       string
	Content        []byte
	ExcludeFromRag bool
	Category       string
}
