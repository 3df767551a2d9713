package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// SearchInput is the input schema for the similarity_search tool.
type SearchInput struct {
	Kind      string   `json:"kind" jsonschema:"document kind: case, constitutional or interpretation (or prec, detc, expc)"`
	Text      string   `json:"text,omitempty" jsonschema:"free text to search with"`
	SimilarTo string   `json:"similar_to,omitempty" jsonschema:"serial number of a stored record to find neighbours of"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of results to return"`
	MinScore  *float64 `json:"min_score,omitempty" jsonschema:"minimum cosine similarity between -1 and 1"`
	Court     string   `json:"court,omitempty" jsonschema:"only return decisions of this court"`
	Category  string   `json:"category,omitempty" jsonschema:"only return decisions of this case category"`
	From      string   `json:"from,omitempty" jsonschema:"earliest decision date, YYYY-MM-DD"`
	To        string   `json:"to,omitempty" jsonschema:"latest decision date, YYYY-MM-DD"`
}

// SearchOutput is the output schema for the similarity_search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single similarity hit.
type SearchResultOutput struct {
	SerialNumber string  `json:"serial_number"`
	Kind         string  `json:"kind"`
	Score        float64 `json:"score"`
	Title        string  `json:"title,omitempty"`
	CaseNumber   string  `json:"case_number,omitempty"`
	DecisionDate string  `json:"decision_date,omitempty"`
	CourtName    string  `json:"court_name,omitempty"`
	Summary      string  `json:"summary,omitempty"`
	URI          string  `json:"uri"`
}

// GetRecordInput is the input schema for the get_record tool.
type GetRecordInput struct {
	Kind         string `json:"kind" jsonschema:"document kind: case, constitutional or interpretation"`
	SerialNumber string `json:"serial_number" jsonschema:"the record's upstream serial number"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "similarity_search",
		Description: "Find harvested decisions semantically similar to a text or to a stored record",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_record",
		Description: "Read one harvested decision with its full text and references",
	}, s.handleGetRecord)
}

// handleSearch handles the similarity_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	q, err := input.query()
	if err != nil {
		return nil, SearchOutput{}, err
	}

	hits, err := s.ports.Search.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}

	for i := range hits {
		out := SearchResultOutput{
			SerialNumber: hits[i].SerialNumber,
			Kind:         string(hits[i].Kind),
			Score:        hits[i].Score,
			URI:          recordURI(hits[i].Kind, hits[i].SerialNumber),
		}
		if rec := hits[i].Record; rec != nil {
			out.Title = rec.Title
			out.CaseNumber = rec.CaseNumber
			out.DecisionDate = rec.DecisionDateString()
			out.CourtName = rec.CourtName
			out.Summary = rec.SummaryText
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleGetRecord handles the get_record tool invocation.
func (s *Server) handleGetRecord(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRecordInput,
) (*mcp.CallToolResult, RecordOutput, error) {
	if s.ports.Records == nil {
		return nil, RecordOutput{}, errors.New("mcp: record service is not configured")
	}

	kind, err := domain.ParseDocumentKind(input.Kind)
	if err != nil {
		return nil, RecordOutput{}, err
	}

	rec, err := s.ports.Records.Get(ctx, kind, input.SerialNumber)
	if err != nil {
		return nil, RecordOutput{}, err
	}

	return nil, newRecordOutput(rec), nil
}

// query converts tool input into a similarity query.
func (in SearchInput) query() (driving.SimilarityQuery, error) {
	kind, err := domain.ParseDocumentKind(in.Kind)
	if err != nil {
		return driving.SimilarityQuery{}, err
	}

	q := driving.SimilarityQuery{
		Kind:      kind,
		Text:      in.Text,
		SimilarTo: strings.TrimSpace(in.SimilarTo),
		TopK:      in.TopK,
		MinScore:  in.MinScore,
		Filter: domain.RecordFilter{
			CourtName:    strings.TrimSpace(in.Court),
			CategoryName: strings.TrimSpace(in.Category),
		},
	}

	if q.Filter.From, err = parseDateParam("from", in.From); err != nil {
		return driving.SimilarityQuery{}, err
	}
	if q.Filter.To, err = parseDateParam("to", in.To); err != nil {
		return driving.SimilarityQuery{}, err
	}

	return q, nil
}

func parseDateParam(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", domain.ErrInvalidInput, name, value)
	}
	return t, nil
}
