package domain

import "time"

// Retrieval defaults.
const (
	// DefaultSearchLimit is the number of results returned when no limit is given.
	DefaultSearchLimit = 10

	// DefaultMinSimilarity is tuned low because short, jargon-heavy
	// consulting text embeds noisily. Callers needing precision raise it.
	DefaultMinSimilarity = 0.55

	// LexicalScore is assigned to every lexical fallback match.
	LexicalScore = 0.5

	// SnippetRadius is the number of characters kept either side of a
	// lexical match.
	SnippetRadius = 100
)

// MatchType records how a result was found.
type MatchType string

// Match types.
const (
	MatchSemantic MatchType = "semantic"
	MatchLexical  MatchType = "lexical"
)

// Scope bounds retrieval to one owner and optionally one client and a set of kinds.
type Scope struct {
	OwnerID  string
	ClientID *string
	Kinds    []SourceKind
}

// SearchQuery is a retrieval request.
type SearchQuery struct {
	Text     string
	OwnerID  string
	ClientID *string
	Kinds    []SourceKind

	// Limit caps the number of results. Zero uses DefaultSearchLimit.
	Limit int

	// MinSimilarity drops semantic matches scoring below it.
	// Nil uses the configured default.
	MinSimilarity *float64

	// Hybrid enables the lexical fallback.
	Hybrid bool
}

// Scope returns the retrieval scope of the query.
func (q SearchQuery) Scope() Scope {
	return Scope{OwnerID: q.OwnerID, ClientID: q.ClientID, Kinds: q.Kinds}
}

// Provenance describes where a result came from.
type Provenance struct {
	Origin     string  `json:"origin"`
	ClientID   *string `json:"client_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
}

// SearchResult is a single ranked retrieval result.
type SearchResult struct {
	SourceID   string     `json:"source_id"`
	ChunkID    string     `json:"chunk_id,omitempty"`
	SourceName string     `json:"source_name"`
	Kind       SourceKind `json:"kind"`
	Text       string     `json:"text"`
	Score      float64    `json:"score"`
	MatchType  MatchType  `json:"match_type"`
	Provenance Provenance `json:"provenance"`
}

// SearchResponse carries ranked results and, when nothing could be
// ranked, guidance for the caller.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Notice  string         `json:"notice,omitempty"`
}

// Candidate is a chunk eligible for semantic ranking together with the
// parent fields needed to build a result.
type Candidate struct {
	Chunk           Chunk
	SourceName      string
	Kind            SourceKind
	Origin          string
	SourceUpdatedAt time.Time
}

// LexicalMatch is a source whose name, content or chunk text contains the
// query literally.
type LexicalMatch struct {
	SourceID   string
	SourceName string
	Kind       SourceKind
	Origin     string
	ClientID   *string

	// ChunkID and ChunkIndex identify the first matching chunk, if any.
	ChunkID    string
	ChunkIndex int

	// Text is the text the query was found in; empty when only the name matched.
	Text string

	UpdatedAt time.Time
}
