package domain

import "time"

// Chunk is a bounded slice of a source's extracted text.
// Chunks are the unit of retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// SourceID links to the parent Source.
	SourceID string `json:"source_id"`

	// OwnerID and ClientID are copied from the parent at creation.
	OwnerID  string  `json:"owner_id"`
	ClientID *string `json:"client_id,omitempty"`

	// Index is the ordinal position within the source.
	Index int `json:"index"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Embedding is the vector representation. Nil when generation failed
	// or no provider is configured.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasEmbedding reports whether the chunk can take part in semantic ranking.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Insight is a short statement generated from a source's content.
type Insight struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	OwnerID   string    `json:"owner_id"`
	ClientID  *string   `json:"client_id,omitempty"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
