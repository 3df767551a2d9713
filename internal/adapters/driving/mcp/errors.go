// Package mcp provides an MCP (Model Context Protocol) server adapter for lexharvest.
// It lets AI assistants run similarity searches over harvested decisions and
// read individual records.
package mcp

import "errors"

// ErrMissingSearchService is returned when the similarity service is not provided.
var ErrMissingSearchService = errors.New("mcp: similarity service is required")
