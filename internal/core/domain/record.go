package domain

import (
	"strings"
	"time"
)

// Provenance records how confident the harvester is in a categorical field.
type Provenance string

const (
	// ProvenanceAsserted means the value came from upstream data verbatim.
	ProvenanceAsserted Provenance = "asserted"

	// ProvenanceInferred means the value was derived from case-number conventions.
	ProvenanceInferred Provenance = "inferred"

	// ProvenanceUnknown means no value could be determined.
	ProvenanceUnknown Provenance = "unknown"
)

// ReferenceArticle is a statute article cited by a document.
type ReferenceArticle struct {
	// LawName is the statute name, e.g. "민법".
	LawName string `json:"law_name"`

	// ArticleNumber keeps the citation form, e.g. "제750조" or "제2조의2 제1항".
	ArticleNumber string `json:"article_number"`

	// Content is an optional quoted article body.
	Content string `json:"content,omitempty"`
}

// ReferenceCase is a prior decision cited by a document.
type ReferenceCase struct {
	CaseNumber   string     `json:"case_number"`
	CourtName    string     `json:"court_name,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
}

// CanonicalRecord is the normalised unit of truth.
// SerialNumber is the only stable key across runs; every other field is
// replaced on re-sync.
type CanonicalRecord struct {
	Kind         DocumentKind
	SerialNumber string
	Title        string
	CaseNumber   string
	DecisionDate time.Time
	DecisionType string

	CourtName       string
	CourtCode       string
	CourtProvenance Provenance

	CategoryName       string
	CategoryCode       string
	CategoryProvenance Provenance

	HoldingText   string
	SummaryText   string
	FullText      string
	RulingText    string
	ReasoningText string
	Remarks       string

	ReferenceArticles []ReferenceArticle
	ReferenceCases    []ReferenceCase

	SearchText string

	// UpdatedAt is set by the store on every upsert.
	UpdatedAt time.Time
}

// Key returns the record's identity within its kind.
func (r *CanonicalRecord) Key() RecordKey {
	return RecordKey{Kind: r.Kind, SerialNumber: r.SerialNumber}
}

// EmbeddingText returns the text to embed and the text type it came from.
// SearchText is preferred; SummaryText is the fallback.
func (r *CanonicalRecord) EmbeddingText() (string, TextType) {
	if strings.TrimSpace(r.SearchText) != "" {
		return r.SearchText, TextTypeSearch
	}
	return r.SummaryText, TextTypeSummary
}

// DecisionDateString formats the decision date as YYYY-MM-DD.
func (r *CanonicalRecord) DecisionDateString() string {
	if r.DecisionDate.IsZero() {
		return ""
	}
	return r.DecisionDate.Format(DateLayout)
}

// DateLayout is the canonical calendar date format.
const DateLayout = "2006-01-02"

// RecordKey identifies a record across runs.
type RecordKey struct {
	Kind         DocumentKind
	SerialNumber string
}

func (k RecordKey) String() string {
	return string(k.Kind) + ":" + k.SerialNumber
}

// RecordFilter narrows hydrated similarity results.
// Zero values mean no constraint.
type RecordFilter struct {
	CourtName    string
	CategoryName string
	From         time.Time
	To           time.Time
}

// IsZero reports whether the filter has no constraints.
func (f RecordFilter) IsZero() bool {
	return f.CourtName == "" && f.CategoryName == "" && f.From.IsZero() && f.To.IsZero()
}

// Matches reports whether the record satisfies every constraint.
func (f RecordFilter) Matches(r *CanonicalRecord) bool {
	if r == nil {
		return false
	}
	if f.CourtName != "" && r.CourtName != f.CourtName {
		return false
	}
	if f.CategoryName != "" && r.CategoryName != f.CategoryName {
		return false
	}
	if !f.From.IsZero() && r.DecisionDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.DecisionDate.After(f.To) {
		return false
	}
	return true
}
