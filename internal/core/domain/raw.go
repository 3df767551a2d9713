package domain

// ResponseKind distinguishes listing pages from single-document detail responses.
type ResponseKind string

const (
	ResponseListing ResponseKind = "listing"
	ResponseDetail  ResponseKind = "detail"
)

// ResponseFormat records whether a payload is machine-readable or a rendered page.
type ResponseFormat string

const (
	// FormatStructured is the registry's XML payload.
	FormatStructured ResponseFormat = "structured"

	// FormatMarkup is a rendered HTML document page.
	FormatMarkup ResponseFormat = "markup"
)

// RawResponse is an upstream payload as fetched.
// It is transient and owned by the response interpreter for the duration of one fetch.
type RawResponse struct {
	ResponseKind ResponseKind
	Format       ResponseFormat
	DocumentKind DocumentKind

	// SerialNumber is set for detail responses.
	SerialNumber string

	// URL is the final request URL with the API key redacted.
	URL string

	StatusCode int
	Body       []byte
}

// Canonical field names produced by the record parser.
const (
	FieldSerialNumber         = "serialNumber"
	FieldTitle                = "title"
	FieldCaseNumber           = "caseNumber"
	FieldDecisionDate         = "decisionDate"
	FieldDecisionType         = "decisionType"
	FieldCourtName            = "courtName"
	FieldCourtCode            = "courtCode"
	FieldCategoryName         = "categoryName"
	FieldCategoryCode         = "categoryCode"
	FieldHoldingText          = "holdingText"
	FieldSummaryText          = "summaryText"
	FieldFullText             = "fullText"
	FieldRulingText           = "rulingText"
	FieldReasoningText        = "reasoningText"
	FieldReferenceArticlesRaw = "referenceArticlesRaw"
	FieldReferenceCasesRaw    = "referenceCasesRaw"
	FieldRemarks              = "remarks"
)

// CanonicalFields lists every field name a parser may emit.
func CanonicalFields() []string {
	return []string{
		FieldSerialNumber, FieldTitle, FieldCaseNumber, FieldDecisionDate, FieldDecisionType,
		FieldCourtName, FieldCourtCode, FieldCategoryName, FieldCategoryCode,
		FieldHoldingText, FieldSummaryText, FieldFullText, FieldRulingText, FieldReasoningText,
		FieldReferenceArticlesRaw, FieldReferenceCasesRaw, FieldRemarks,
	}
}

// RawFieldMap holds parsed upstream values under canonical field names.
// Absent fields are simply missing from Fields.
type RawFieldMap struct {
	Kind   DocumentKind
	Format ResponseFormat
	Fields map[string]string
}

// NewRawFieldMap creates an empty field map for a kind.
func NewRawFieldMap(kind DocumentKind, format ResponseFormat) RawFieldMap {
	return RawFieldMap{Kind: kind, Format: format, Fields: make(map[string]string)}
}

// Get returns the value for a canonical field, or "" if absent.
func (m RawFieldMap) Get(field string) string {
	if m.Fields == nil {
		return ""
	}
	return m.Fields[field]
}

// Has reports whether field is present with a non-empty value.
func (m RawFieldMap) Has(field string) bool {
	return m.Get(field) != ""
}

// Merge fills fields missing from m with values from other.
// Values already present in m win.
func (m RawFieldMap) Merge(other RawFieldMap) RawFieldMap {
	out := NewRawFieldMap(m.Kind, m.Format)
	for k, v := range other.Fields {
		if v != "" {
			out.Fields[k] = v
		}
	}
	for k, v := range m.Fields {
		if v != "" {
			out.Fields[k] = v
		}
	}
	return out
}
