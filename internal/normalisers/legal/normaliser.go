// Package legal normalises parsed registry fields into canonical records.
//
// Rules run in a fixed order: required-field check, text cleaning,
// case-number canonicalisation with court inference, date parsing,
// reference extraction and search-text derivation.
package legal

import (
	"strings"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// requiredFields are checked in order; the first absent one is reported.
var requiredFields = []string{
	domain.FieldSerialNumber,
	domain.FieldTitle,
	domain.FieldCaseNumber,
	domain.FieldDecisionDate,
}

// lineFields are single-line values; everything else keeps line breaks.
var lineFields = map[string]bool{
	domain.FieldSerialNumber: true,
	domain.FieldTitle:        true,
	domain.FieldCaseNumber:   true,
	domain.FieldDecisionDate: true,
	domain.FieldDecisionType: true,
	domain.FieldCourtName:    true,
	domain.FieldCourtCode:    true,
	domain.FieldCategoryName: true,
	domain.FieldCategoryCode: true,
}

// Normaliser applies the legal-document normalisation rules.
type Normaliser struct {
	rules *Rules
}

// New creates a normaliser over the embedded rules.
func New() (*Normaliser, error) {
	r, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return &Normaliser{rules: r}, nil
}

// NewWithRules creates a normaliser over custom rules.
func NewWithRules(r *Rules) *Normaliser {
	return &Normaliser{rules: r}
}

// Normalise converts a parsed field map into a canonical record.
func (n *Normaliser) Normalise(raw domain.RawFieldMap) (*domain.CanonicalRecord, error) {
	fields := make(map[string]string, len(raw.Fields))
	for k, v := range raw.Fields {
		if lineFields[k] {
			fields[k] = CleanLine(v)
		} else {
			fields[k] = CleanBlock(v)
		}
	}

	for _, f := range requiredFields {
		if fields[f] == "" {
			return nil, &domain.MissingFieldError{Field: f}
		}
	}

	rec := &domain.CanonicalRecord{
		Kind:          raw.Kind,
		SerialNumber:  fields[domain.FieldSerialNumber],
		Title:         fields[domain.FieldTitle],
		DecisionType:  fields[domain.FieldDecisionType],
		HoldingText:   fields[domain.FieldHoldingText],
		SummaryText:   fields[domain.FieldSummaryText],
		FullText:      fields[domain.FieldFullText],
		RulingText:    fields[domain.FieldRulingText],
		ReasoningText: fields[domain.FieldReasoningText],
		Remarks:       fields[domain.FieldRemarks],
	}

	n.applyCaseNumber(rec, fields)

	date, err := ParseDate(fields[domain.FieldDecisionDate])
	if err != nil {
		return nil, err
	}
	rec.DecisionDate = date

	rec.ReferenceArticles = ExtractArticles(fields[domain.FieldReferenceArticlesRaw])
	rec.ReferenceCases = ExtractCases(fields[domain.FieldReferenceCasesRaw])
	rec.SearchText = SearchText(rec)

	return rec, nil
}

// applyCaseNumber canonicalises the case number and settles court and
// category. Upstream values are authoritative; a disagreeing value derived
// from the case number is logged and discarded.
func (n *Normaliser) applyCaseNumber(rec *domain.CanonicalRecord, fields map[string]string) {
	cn := n.rules.Canonicalize(fields[domain.FieldCaseNumber])
	rec.CaseNumber = cn.Number

	rec.CourtName, rec.CourtCode, rec.CourtProvenance = cn.Court, cn.CourtCode, cn.CourtProvenance
	if upstream := fields[domain.FieldCourtName]; upstream != "" {
		if cn.Court != "" && !sameCourt(upstream, cn.Court) {
			logger.Warn("%s %s: court %q from upstream conflicts with %s %q from case number %q",
				rec.Kind, rec.SerialNumber, upstream, cn.CourtProvenance, cn.Court, fields[domain.FieldCaseNumber])
		}
		rec.CourtName = upstream
		rec.CourtCode = fields[domain.FieldCourtCode]
		rec.CourtProvenance = domain.ProvenanceAsserted
	} else if code := fields[domain.FieldCourtCode]; code != "" {
		rec.CourtCode = code
	}

	rec.CategoryName, rec.CategoryProvenance = cn.Category, cn.CategoryProvenance
	rec.CategoryCode = fields[domain.FieldCategoryCode]
	if upstream := fields[domain.FieldCategoryName]; upstream != "" {
		rec.CategoryName = upstream
		rec.CategoryProvenance = domain.ProvenanceAsserted
	}
}

// sameCourt treats a generic court tier ("고등법원") as consistent with a
// specific court of that tier ("서울고등법원").
func sameCourt(a, b string) bool {
	a = strings.ReplaceAll(a, " ", "")
	b = strings.ReplaceAll(b, " ", "")
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// SearchText joins title, case number, holding and summary with single
// spaces, skipping empty values.
func SearchText(rec *domain.CanonicalRecord) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{rec.Title, rec.CaseNumber, rec.HoldingText, rec.SummaryText} {
		if p = CleanLine(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
