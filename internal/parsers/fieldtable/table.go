package fieldtable

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

//go:embed tables.yaml
var defaultTables []byte

// FieldMapping binds one upstream label to a canonical field.
type FieldMapping struct {
	Label string `yaml:"label"`
	Field string `yaml:"field"`
}

// KindTable is the field vocabulary of one document kind.
type KindTable struct {
	Target        string            `yaml:"target"`
	ItemElement   string            `yaml:"item_element"`
	IdentityField string            `yaml:"identity_field"`
	Fields        []FieldMapping    `yaml:"fields"`
	DetailOnly    []string          `yaml:"detail_only"`
	Sections      map[string]string `yaml:"sections"`

	byLabel    map[string]int
	detailOnly map[string]bool
}

// Tables holds every kind's vocabulary.
type Tables struct {
	Kinds map[domain.DocumentKind]*KindTable `yaml:"kinds"`
}

// LoadTables parses and validates a YAML table document.
func LoadTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse field tables: %w", err)
	}
	if len(t.Kinds) == 0 {
		return nil, fmt.Errorf("%w: field tables define no kinds", domain.ErrInvalidInput)
	}

	known := make(map[string]bool)
	for _, f := range domain.CanonicalFields() {
		known[f] = true
	}

	for kind, kt := range t.Kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown kind %q in field tables", domain.ErrInvalidInput, kind)
		}
		if kt.ItemElement == "" {
			kt.ItemElement = kind.Target()
		}
		if !known[kt.IdentityField] {
			return nil, fmt.Errorf("%w: %s identity field %q is not canonical", domain.ErrInvalidInput, kind, kt.IdentityField)
		}

		kt.byLabel = make(map[string]int, len(kt.Fields))
		for i, m := range kt.Fields {
			if !known[m.Field] {
				return nil, fmt.Errorf("%w: %s label %q maps to unknown field %q", domain.ErrInvalidInput, kind, m.Label, m.Field)
			}
			if _, dup := kt.byLabel[m.Label]; dup {
				return nil, fmt.Errorf("%w: %s label %q mapped twice", domain.ErrInvalidInput, kind, m.Label)
			}
			kt.byLabel[m.Label] = i
		}

		kt.detailOnly = make(map[string]bool, len(kt.DetailOnly))
		for _, f := range kt.DetailOnly {
			kt.detailOnly[f] = true
		}

		sections := make(map[string]string, len(kt.Sections))
		for heading, field := range kt.Sections {
			if !known[field] {
				return nil, fmt.Errorf("%w: %s section %q maps to unknown field %q", domain.ErrInvalidInput, kind, heading, field)
			}
			sections[compactHeading(heading)] = field
		}
		kt.Sections = sections
	}

	return &t, nil
}

// DefaultTables returns the embedded tables.
func DefaultTables() (*Tables, error) {
	return LoadTables(defaultTables)
}

// compactHeading removes spacing and bracket decoration from a section
// heading so that "【판 시 사 항】" and "판시사항" compare equal.
func compactHeading(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\u00a0', '\u3000', '【', '】', '[', ']', '<', '>', '〈', '〉':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
