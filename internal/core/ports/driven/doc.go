// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceStore: Source persistence and the status machine
//   - ChunkStore: Chunk persistence and retrieval candidates
//   - Extractor / ExtractorRegistry: Per-kind content extraction
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingProvider: Without it chunks carry no vectors and only lexical retrieval works.
//   - VisionProvider: Without it images are unsupported and PDFs are text-only.
//   - TextGenProvider: Without it summaries and insights are skipped.
//   - InsightStore: Without it generated insights are discarded.
//   - BlobReader: Without it sources must carry their raw bytes.
package driven
