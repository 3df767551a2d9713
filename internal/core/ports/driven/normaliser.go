package driven

import "github.com/custodia-labs/lexharvest/internal/core/domain"

// RecordParser maps upstream structured payloads onto canonical field names.
// Parsing is pure: unknown upstream fields are ignored and missing optional
// fields are absent rather than errors.
type RecordParser interface {
	// ParseListing returns the total result count and one field map per item.
	ParseListing(body []byte, kind domain.DocumentKind) (int, []domain.RawFieldMap, error)

	// ParseDetail returns the field map of a single document.
	ParseDetail(body []byte, kind domain.DocumentKind) (domain.RawFieldMap, error)

	// MapSections maps markup section headings (e.g. "판시사항") onto
	// canonical fields, for documents recovered from rendered pages.
	MapSections(kind domain.DocumentKind, sections map[string]string) domain.RawFieldMap

	// IdentityField returns the canonical field that must be non-empty
	// for a response of this kind to be usable.
	IdentityField(kind domain.DocumentKind) string
}

// Normaliser transforms parsed fields into a canonical record.
type Normaliser interface {
	// Normalise validates required fields and applies cleaning,
	// canonicalisation and reference extraction.
	Normalise(fields domain.RawFieldMap) (*domain.CanonicalRecord, error)
}
