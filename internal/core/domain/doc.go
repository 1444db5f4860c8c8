// Package domain defines the core business entities for dossier.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: An ingested document or record and its processing status
//   - Chunk: A bounded slice of a source's text, the retrieval unit
//   - Insight: A short statement generated from a source
//   - RawSource: Opaque bytes or a locator handed over by a producer
//   - ExtractionResult: The tagged outcome of content extraction
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
