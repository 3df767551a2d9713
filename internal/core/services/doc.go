// Package services implements the driving port interfaces.
// Services contain the harvesting, indexing and search logic and
// orchestrate calls to driven ports (adapters).
//
// The sync orchestrator feeds the index manager, which the similarity
// service and the MCP server read from. Services depend only on ports,
// so every test runs against the in-memory adapters.
package services
