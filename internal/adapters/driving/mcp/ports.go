package mcp

import (
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers similarity queries.
	Search driving.SimilarityService

	// Records reads stored records.
	Records driving.RecordService

	// Index reports vector index statistics.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Records and Index only back get_record and the resources
	return nil
}
