package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist
	// or is not visible to the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source kind or content type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidTransition indicates a status change the source lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	// Semantic retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrVisionUnavailable indicates no vision-capable model is configured.
	// Image extraction and the PDF visual pass are disabled.
	ErrVisionUnavailable = errors.New("vision provider unavailable")

	// ErrTextGenUnavailable indicates no text generation model is configured.
	// Summaries and insights are skipped.
	ErrTextGenUnavailable = errors.New("text generation provider unavailable")

	// ErrPoolClosed indicates the pipeline no longer accepts work.
	ErrPoolClosed = errors.New("pipeline closed")

	// ErrRateLimited indicates an external API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
