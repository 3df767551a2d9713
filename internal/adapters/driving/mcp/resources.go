package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for lexharvest resources.
	uriScheme = "lexharvest://"
)

// RecordOutput is the JSON view of a stored record.
type RecordOutput struct {
	Kind               string                    `json:"kind"`
	SerialNumber       string                    `json:"serial_number"`
	Title              string                    `json:"title"`
	CaseNumber         string                    `json:"case_number"`
	DecisionDate       string                    `json:"decision_date,omitempty"`
	DecisionType       string                    `json:"decision_type,omitempty"`
	CourtName          string                    `json:"court_name,omitempty"`
	CourtProvenance    string                    `json:"court_provenance,omitempty"`
	CategoryName       string                    `json:"category_name,omitempty"`
	CategoryProvenance string                    `json:"category_provenance,omitempty"`
	Holding            string                    `json:"holding,omitempty"`
	Summary            string                    `json:"summary,omitempty"`
	Ruling             string                    `json:"ruling,omitempty"`
	Reasoning          string                    `json:"reasoning,omitempty"`
	FullText           string                    `json:"full_text,omitempty"`
	ReferenceArticles  []domain.ReferenceArticle `json:"reference_articles,omitempty"`
	ReferenceCases     []domain.ReferenceCase    `json:"reference_cases,omitempty"`
}

func newRecordOutput(rec *domain.CanonicalRecord) RecordOutput {
	return RecordOutput{
		Kind:               string(rec.Kind),
		SerialNumber:       rec.SerialNumber,
		Title:              rec.Title,
		CaseNumber:         rec.CaseNumber,
		DecisionDate:       rec.DecisionDateString(),
		DecisionType:       rec.DecisionType,
		CourtName:          rec.CourtName,
		CourtProvenance:    string(rec.CourtProvenance),
		CategoryName:       rec.CategoryName,
		CategoryProvenance: string(rec.CategoryProvenance),
		Holding:            rec.HoldingText,
		Summary:            rec.SummaryText,
		Ruling:             rec.RulingText,
		Reasoning:          rec.ReasoningText,
		FullText:           rec.FullText,
		ReferenceArticles:  rec.ReferenceArticles,
		ReferenceCases:     rec.ReferenceCases,
	}
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Template for per-kind index statistics.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "index/{kind}",
		Name:        "index-stats",
		Description: "Vector index statistics and record count for a document kind",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	// Template for a single record.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{kind}/{serial}",
		Name:        "record",
		Description: "A harvested decision as JSON",
		MIMEType:    "application/json",
	}, s.handleRecordResource)
}

// handleIndexResource returns index statistics for one kind.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract kind from URI: lexharvest://index/{kind}
	kind, ok := extractIndexKind(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	stats, err := s.ports.Index.Stats(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("reading index stats: %w", err)
	}

	type indexInfo struct {
		Kind        string `json:"kind"`
		Generation  int64  `json:"generation"`
		Dimensions  int    `json:"dimensions"`
		Vectors     int    `json:"vectors"`
		LiveEntries int    `json:"live_entries"`
		Tombstones  int    `json:"tombstones"`
		Model       string `json:"model,omitempty"`
		Records     *int   `json:"records,omitempty"`
	}

	info := indexInfo{
		Kind:        string(kind),
		Generation:  stats.Generation,
		Dimensions:  stats.Dimensions,
		Vectors:     stats.Vectors,
		LiveEntries: stats.LiveEntries,
		Tombstones:  stats.Tombstones,
		Model:       stats.Model,
	}
	if s.ports.Records != nil {
		n, err := s.ports.Records.Count(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("counting records: %w", err)
		}
		info.Records = &n
	}

	return jsonResource(req.Params.URI, info)
}

// handleRecordResource returns one record as JSON.
func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Records == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract kind and serial from URI: lexharvest://records/{kind}/{serial}
	kind, serial, ok := extractRecordKey(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Records.Get(ctx, kind, serial)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	return jsonResource(req.Params.URI, newRecordOutput(rec))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// recordURI builds the resource URI of a record.
func recordURI(kind domain.DocumentKind, serial string) string {
	return uriScheme + "records/" + string(kind) + "/" + serial
}

// extractIndexKind extracts the kind from a URI like lexharvest://index/{kind}.
func extractIndexKind(uri string) (domain.DocumentKind, bool) {
	const prefix = uriScheme + "index/"

	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}

	kind, err := domain.ParseDocumentKind(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return "", false
	}
	return kind, true
}

// extractRecordKey extracts the kind and serial from a URI like
// lexharvest://records/{kind}/{serial}.
func extractRecordKey(uri string) (domain.DocumentKind, string, bool) {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}

	kindPart, serial, found := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !found || serial == "" || strings.Contains(serial, "/") {
		return "", "", false
	}

	kind, err := domain.ParseDocumentKind(kindPart)
	if err != nil {
		return "", "", false
	}
	return kind, serial, true
}
