package domain

import (
	"fmt"
	"strings"
)

// DocumentKind identifies one of the registry's document families.
// Each kind has its own upstream field vocabulary but shares the processing shape.
type DocumentKind string

const (
	// KindCase is a court decision (판례).
	KindCase DocumentKind = "case"

	// KindConstitutional is a constitutional court decision (헌재결정례).
	KindConstitutional DocumentKind = "constitutional"

	// KindInterpretation is a statutory interpretation (법령해석례).
	KindInterpretation DocumentKind = "interpretation"
)

// AllKinds returns every supported document kind in harvesting order.
func AllKinds() []DocumentKind {
	return []DocumentKind{KindCase, KindConstitutional, KindInterpretation}
}

// Target returns the upstream API target code for the kind.
func (k DocumentKind) Target() string {
	switch k {
	case KindCase:
		return "prec"
	case KindConstitutional:
		return "detc"
	case KindInterpretation:
		return "expc"
	default:
		return ""
	}
}

// Valid reports whether k is a known kind.
func (k DocumentKind) Valid() bool {
	return k.Target() != ""
}

func (k DocumentKind) String() string {
	return string(k)
}

// ParseDocumentKind accepts either a kind name ("case") or an upstream
// target code ("prec") and returns the matching kind.
func ParseDocumentKind(s string) (DocumentKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds() {
		if v == string(k) || v == k.Target() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, s)
}

// ParseDocumentKinds expands a target selector. "all" (or empty) yields every kind.
func ParseDocumentKinds(s string) ([]DocumentKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "all" {
		return AllKinds(), nil
	}

	var kinds []DocumentKind
	seen := make(map[DocumentKind]bool)
	for _, part := range strings.Split(v, ",") {
		k, err := ParseDocumentKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
