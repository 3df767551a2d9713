// Package domain defines the core business entities for lexharvest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentKind: case, constitutional decision, legal interpretation
//   - RawResponse / RawFieldMap: upstream payloads before normalisation
//   - CanonicalRecord: the normalised unit of truth, keyed by serial number
//   - EmbeddingEntry: the mapping from a record to a vector index slot
//   - SyncCheckpoint / RunStats: harvesting progress and audit records
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
