package legal

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

//go:embed rules.yaml
var defaultRules []byte

// SuffixRule maps a case-type suffix to a court and broad category.
type SuffixRule struct {
	Suffix    string `yaml:"suffix"`
	Court     string `yaml:"court"`
	CourtCode string `yaml:"court_code"`
	Category  string `yaml:"category"`
}

// Rules holds the declarative normalisation tables.
type Rules struct {
	Suffixes []SuffixRule `yaml:"suffixes"`

	bySuffix  map[string]SuffixRule
	maxSuffix int
}

// LoadRules parses and indexes a rules document.
func LoadRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse normalisation rules: %w", err)
	}
	r.bySuffix = make(map[string]SuffixRule, len(r.Suffixes))
	for _, s := range r.Suffixes {
		if s.Suffix == "" || s.Court == "" {
			return nil, fmt.Errorf("%w: suffix rule needs suffix and court", domain.ErrInvalidInput)
		}
		if _, dup := r.bySuffix[s.Suffix]; dup {
			return nil, fmt.Errorf("%w: duplicate suffix rule %q", domain.ErrInvalidInput, s.Suffix)
		}
		r.bySuffix[s.Suffix] = s
		if n := utf8.RuneCountInString(s.Suffix); n > r.maxSuffix {
			r.maxSuffix = n
		}
	}
	return &r, nil
}

// DefaultRules returns the embedded rules.
func DefaultRules() (*Rules, error) {
	return LoadRules(defaultRules)
}

// Lookup returns the rule for the longest known suffix ending typeSuffix.
func (r *Rules) Lookup(typeSuffix string) (SuffixRule, bool) {
	runes := []rune(typeSuffix)
	for n := min(len(runes), r.maxSuffix); n > 0; n-- {
		if rule, ok := r.bySuffix[string(runes[len(runes)-n:])]; ok {
			return rule, true
		}
	}
	return SuffixRule{}, false
}

// CaseNumber is the result of canonicalising a case identifier.
type CaseNumber struct {
	// Number is the canonical "<year><suffix><sequence>" form, or the
	// cleaned input when it follows no known shape.
	Number string

	// Suffix is the case-type suffix, empty when unparsed.
	Suffix string

	Court           string
	CourtCode       string
	CourtProvenance domain.Provenance

	Category           string
	CategoryProvenance domain.Provenance
}

var (
	trailingDate = regexp.MustCompile(`\(\d{4}\.\d{1,2}\.\d{1,2}\.?\)$`)
	courtForm    = regexp.MustCompile(`^(.+?(?:법원|지원)(?:\([^)]+\))?)-?(\d{4})-?(\p{Hangul}+)-?(\d+)$`)
	pureForm     = regexp.MustCompile(`^(\d{2,4})(\p{Hangul}+)(\d+)$`)
)

// cleanCaseNumber removes whitespace, decision-date annotations and stray
// asterisks. It is applied until stable so the result is a fixed point.
func cleanCaseNumber(raw string) string {
	s := raw
	for {
		next := anyWhitespace.ReplaceAllString(s, "")
		next = strings.ReplaceAll(next, "*", "")
		next = trailingDate.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

// Canonicalize parses a case identifier.
//
// "<court>-<year>-<suffix>-<seq>" and "<court><year><suffix><seq>" recompose to
// "<year><suffix><seq>" with the court asserted verbatim. A bare
// "<year><suffix><seq>" gets its court inferred from the suffix table.
// Canonicalize(Canonicalize(x).Number).Number == Canonicalize(x).Number.
func (r *Rules) Canonicalize(raw string) CaseNumber {
	s := cleanCaseNumber(CleanLine(raw))
	out := CaseNumber{
		Number:             s,
		CourtProvenance:    domain.ProvenanceUnknown,
		CategoryProvenance: domain.ProvenanceUnknown,
	}

	if m := courtForm.FindStringSubmatch(s); m != nil {
		out.Number = m[2] + m[3] + m[4]
		out.Suffix = m[3]
		out.Court = m[1]
		out.CourtProvenance = domain.ProvenanceAsserted
		if rule, ok := r.Lookup(out.Suffix); ok {
			out.Category = rule.Category
			out.CategoryProvenance = domain.ProvenanceInferred
		}
		return out
	}

	if m := pureForm.FindStringSubmatch(s); m != nil {
		out.Suffix = m[2]
		if rule, ok := r.Lookup(out.Suffix); ok {
			out.Court = rule.Court
			out.CourtCode = rule.CourtCode
			out.CourtProvenance = domain.ProvenanceInferred
			out.Category = rule.Category
			out.CategoryProvenance = domain.ProvenanceInferred
		}
	}
	return out
}
