// Package fieldtable maps registry XML payloads onto canonical field names
// using per-kind label tables loaded from YAML. New document kinds are
// added by editing tables.yaml, not code.
package fieldtable

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.RecordParser = (*Parser)(nil)

// Parser is a pure, table-driven record parser.
type Parser struct {
	tables *Tables
}

// New creates a parser over the embedded tables.
func New() (*Parser, error) {
	t, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return &Parser{tables: t}, nil
}

// NewWithTables creates a parser over custom tables.
func NewWithTables(t *Tables) *Parser {
	return &Parser{tables: t}
}

func (p *Parser) table(kind domain.DocumentKind) (*KindTable, error) {
	kt, ok := p.tables.Kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no field table for kind %q", domain.ErrInvalidInput, kind)
	}
	return kt, nil
}

// IdentityField returns the usability key for kind.
func (p *Parser) IdentityField(kind domain.DocumentKind) string {
	kt, err := p.table(kind)
	if err != nil {
		return domain.FieldTitle
	}
	return kt.IdentityField
}

// ParseListing extracts totalCnt and every item element.
// Detail-only fields are dropped from listing items.
func (p *Parser) ParseListing(body []byte, kind domain.DocumentKind) (int, []domain.RawFieldMap, error) {
	kt, err := p.table(kind)
	if err != nil {
		return 0, nil, err
	}

	total := 0
	var items []domain.RawFieldMap
	var current *collector

	err = walk(body, func(path []string, text string) {
		name := path[len(path)-1]
		if name == "totalCnt" && len(path) == 2 {
			if n, convErr := strconv.Atoi(strings.TrimSpace(text)); convErr == nil {
				total = n
			}
			return
		}
		if current != nil && len(path) >= 2 && path[len(path)-2] == kt.ItemElement {
			current.assign(name, text)
		}
	}, func(path []string, start bool) {
		if path[len(path)-1] != kt.ItemElement || len(path) < 2 {
			return
		}
		if start {
			current = newCollector(kt, kind, true)
			return
		}
		if current != nil && len(current.fields.Fields) > 0 {
			items = append(items, current.fields)
		}
		current = nil
	})
	if err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

// ParseDetail flattens a single-document response. Every element below the
// root is matched against the label table; nesting is ignored.
func (p *Parser) ParseDetail(body []byte, kind domain.DocumentKind) (domain.RawFieldMap, error) {
	kt, err := p.table(kind)
	if err != nil {
		return domain.RawFieldMap{}, err
	}

	c := newCollector(kt, kind, false)
	err = walk(body, func(path []string, text string) {
		if len(path) < 2 {
			return
		}
		c.assign(path[len(path)-1], text)
	}, nil)
	if err != nil {
		return domain.RawFieldMap{}, err
	}
	return c.fields, nil
}

// MapSections maps markup headings onto canonical fields.
// Unknown headings are ignored.
func (p *Parser) MapSections(kind domain.DocumentKind, sections map[string]string) domain.RawFieldMap {
	fields := domain.NewRawFieldMap(kind, domain.FormatMarkup)
	kt, err := p.table(kind)
	if err != nil {
		return fields
	}
	for heading, text := range sections {
		field, ok := kt.Sections[compactHeading(heading)]
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		if existing := fields.Fields[field]; existing != "" {
			fields.Fields[field] = existing + "\n" + text
			continue
		}
		fields.Fields[field] = text
	}
	return fields
}

// collector accumulates one field map, keeping for each field the value
// from the label listed earliest in the table.
type collector struct {
	kt      *KindTable
	fields  domain.RawFieldMap
	rank    map[string]int
	listing bool
}

func newCollector(kt *KindTable, kind domain.DocumentKind, listing bool) *collector {
	return &collector{
		kt:      kt,
		fields:  domain.NewRawFieldMap(kind, domain.FormatStructured),
		rank:    make(map[string]int),
		listing: listing,
	}
}

func (c *collector) assign(label, text string) {
	idx, ok := c.kt.byLabel[label]
	if !ok {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	field := c.kt.Fields[idx].Field
	if c.listing && c.kt.detailOnly[field] {
		return
	}
	if prev, set := c.rank[field]; set && prev <= idx {
		return
	}
	c.fields.Fields[field] = text
	c.rank[field] = idx
}

// walk streams the XML document, calling text for every element's
// character data (at element end) and edge for element boundaries.
func walk(body []byte, text func(path []string, data string), edge func(path []string, start bool)) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var path []string
	var buf []*strings.Builder
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			path = append(path, t.Name.Local)
			buf = append(buf, &strings.Builder{})
			if edge != nil {
				edge(path, true)
			}
		case xml.CharData:
			if len(buf) > 0 {
				buf[len(buf)-1].Write(t)
			}
		case xml.EndElement:
			if len(path) == 0 {
				return fmt.Errorf("%w: unbalanced element %s", domain.ErrMalformedResponse, t.Name.Local)
			}
			text(path, buf[len(buf)-1].String())
			if edge != nil {
				edge(path, false)
			}
			path = path[:len(path)-1]
			buf = buf[:len(buf)-1]
		}
	}

	if !sawRoot {
		return fmt.Errorf("%w: no XML document", domain.ErrMalformedResponse)
	}
	if len(path) != 0 {
		return fmt.Errorf("%w: unexpected end of document", domain.ErrMalformedResponse)
	}
	return nil
}
