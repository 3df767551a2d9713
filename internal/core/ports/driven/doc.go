// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Fetcher: Rate-limited access to the registry API
//   - DocumentSource: Listing and detail retrieval with response interpretation
//   - RecordParser: Upstream payload to RawFieldMap
//   - Normaliser: RawFieldMap to CanonicalRecord
//   - RecordStore: Canonical record persistence (upsert by serial number)
//   - CheckpointStore: Resumable sync state
//   - RunStatsStore: Append-only run audit records
//   - QuotaCounter / RunLock: Shared rate-limit and run coordination state
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, records are stored but not indexed.
//   - VectorIndex / EmbeddingEntryStore: Exact similarity index storage.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
