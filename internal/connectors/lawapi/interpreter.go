package lawapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure Interpreter implements the interface.
var _ driven.DocumentSource = (*Interpreter)(nil)

// errorMarkers are "no data" notices the registry returns with HTTP 200.
// They only count when the notice is the whole payload; documents may quote them.
var errorMarkers = []string{
	"일치하는 판례가 없습니다",
	"일치하는 헌재결정례가 없습니다",
	"일치하는 법령해석례가 없습니다",
	"데이터가 없습니다",
}

// noticeMaxRunes bounds the length of a text that is nothing but a notice.
const noticeMaxRunes = 200

// dateRangeParams names the listing filter on decision date, per kind.
var dateRangeParams = map[domain.DocumentKind]string{
	domain.KindCase:           "prncYd",
	domain.KindConstitutional: "edYd",
	domain.KindInterpretation: "explYd",
}

// Tier is a step of the detail interpretation state machine.
type Tier string

const (
	TierStructured    Tier = "structured"
	TierFallback      Tier = "fallback"
	TierUsable        Tier = "usable"
	TierUnrecoverable Tier = "unrecoverable"
)

// InterpreterStats counts detail outcomes.
type InterpreterStats struct {
	Structured    int64
	Fallbacks     int64
	Recovered     int64
	Unrecoverable int64
}

// Interpreter turns raw registry responses into usable field maps.
// Details are read from the structured API first; an unusable response
// triggers exactly one attempt at the rendered document page.
type Interpreter struct {
	fetcher driven.Fetcher
	parser  driven.RecordParser
	now     func() time.Time

	structured    atomic.Int64
	fallbacks     atomic.Int64
	recovered     atomic.Int64
	unrecoverable atomic.Int64
}

// NewInterpreter creates an interpreter over a fetcher and a parser.
func NewInterpreter(fetcher driven.Fetcher, parser driven.RecordParser) *Interpreter {
	return &Interpreter{fetcher: fetcher, parser: parser, now: time.Now}
}

// Stats returns a snapshot of the outcome counters.
func (i *Interpreter) Stats() InterpreterStats {
	return InterpreterStats{
		Structured:    i.structured.Load(),
		Fallbacks:     i.fallbacks.Load(),
		Recovered:     i.recovered.Load(),
		Unrecoverable: i.unrecoverable.Load(),
	}
}

// Listing fetches and parses one listing page. A malformed listing is a
// failure of the page; listings have no fallback tier.
func (i *Interpreter) Listing(ctx context.Context, q driven.ListingQuery) (*driven.ListingPage, error) {
	params := map[string][]string{
		"page":    {strconv.Itoa(q.Page)},
		"display": {strconv.Itoa(q.Display)},
	}
	if !q.Since.IsZero() {
		until := q.Until
		if until.IsZero() {
			until = i.now()
		}
		params[dateRangeParams[q.Kind]] = []string{
			q.Since.In(quotaZone).Format("20060102") + "~" + until.In(quotaZone).Format("20060102"),
		}
	}

	resp, err := i.fetcher.Fetch(ctx, driven.FetchRequest{Endpoint: driven.EndpointListing, Kind: q.Kind, Params: params})
	if err != nil {
		return nil, err
	}

	page := &driven.ListingPage{Page: q.Page}
	if isNoticePayload(resp.Body) {
		return page, nil
	}

	total, items, err := i.parser.ParseListing(resp.Body, q.Kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s page %d: %w", q.Kind.Target(), q.Page, err)
	}
	page.TotalCount = total
	page.Items = items
	return page, nil
}

// Detail fetches one document through the tiers
// structured -> fallback -> usable | unrecoverable.
// Fetch failures that end the run (quota, rejected key, cancellation) are
// returned as they are; a document neither tier can read yields
// *domain.UnrecoverableError.
func (i *Interpreter) Detail(ctx context.Context, kind domain.DocumentKind, serial string) (domain.RawFieldMap, error) {
	tier := TierStructured
	fields, err := i.readStructured(ctx, kind, serial)
	if err == nil {
		i.structured.Add(1)
		return fields, nil
	}
	var reason *unusableError
	if !errors.As(err, &reason) {
		return domain.RawFieldMap{}, err
	}

	logger.Debug("lawapi: %s %s: %s tier unusable (%v)", kind, serial, tier, reason.reason)
	tier = TierFallback
	i.fallbacks.Add(1)

	recovered, fbErr := i.readFallback(ctx, kind, serial)
	if fbErr == nil {
		i.recovered.Add(1)
		logger.Debug("lawapi: %s %s: %s tier %s", kind, serial, tier, TierUsable)
		return recovered.Merge(reason.fields), nil
	}
	if IsFatal(fbErr) || ctx.Err() != nil {
		return domain.RawFieldMap{}, fbErr
	}

	i.unrecoverable.Add(1)
	logger.Debug("lawapi: %s %s: %s tier failed (%v), %s", kind, serial, tier, fbErr, TierUnrecoverable)
	return domain.RawFieldMap{}, &domain.UnrecoverableError{
		Kind:         kind,
		SerialNumber: serial,
		Cause:        errors.Join(reason.reason, fbErr),
	}
}

// unusableError marks a structured response that arrived but cannot be used.
type unusableError struct {
	fields domain.RawFieldMap
	reason error
}

func (e *unusableError) Error() string { return e.reason.Error() }

func (e *unusableError) Unwrap() error { return e.reason }

// readStructured returns the parsed detail. A response that arrived but is
// not usable yields *unusableError carrying whatever fields were parsed.
func (i *Interpreter) readStructured(ctx context.Context, kind domain.DocumentKind, serial string) (domain.RawFieldMap, error) {
	resp, err := i.fetcher.Fetch(ctx, driven.FetchRequest{
		Endpoint: driven.EndpointDetail,
		Kind:     kind,
		Params:   map[string][]string{"ID": {serial}},
	})
	if err != nil {
		return domain.RawFieldMap{}, err
	}

	if isNoticePayload(resp.Body) {
		return domain.RawFieldMap{}, &unusableError{reason: ErrErrorMarker}
	}
	fields, err := i.parser.ParseDetail(resp.Body, kind)
	if err != nil {
		return domain.RawFieldMap{}, &unusableError{reason: err}
	}
	if !fields.Has(domain.FieldSerialNumber) {
		fields.Fields[domain.FieldSerialNumber] = serial
	}
	if !fields.Has(i.parser.IdentityField(kind)) {
		return domain.RawFieldMap{}, &unusableError{fields: fields, reason: ErrMissingIdentity}
	}
	return fields, nil
}

// readFallback reads the rendered document page, following its content frame.
func (i *Interpreter) readFallback(ctx context.Context, kind domain.DocumentKind, serial string) (domain.RawFieldMap, error) {
	path, err := documentPagePath(kind, serial)
	if err != nil {
		return domain.RawFieldMap{}, err
	}

	page, err := i.fetcher.Fetch(ctx, driven.FetchRequest{Endpoint: driven.EndpointPage, Kind: kind, URL: path})
	if err != nil {
		return domain.RawFieldMap{}, err
	}
	doc, err := parseHTML(page.Body)
	if err != nil {
		return domain.RawFieldMap{}, err
	}

	if frameURL, ok := findFrame(doc, page.URL); ok {
		frame, err := i.fetcher.Fetch(ctx, driven.FetchRequest{Endpoint: driven.EndpointPage, Kind: kind, URL: frameURL})
		if err != nil {
			return domain.RawFieldMap{}, err
		}
		if doc, err = parseHTML(frame.Body); err != nil {
			return domain.RawFieldMap{}, err
		}
	} else if _, ok := contentBody(doc); !ok {
		return domain.RawFieldMap{}, ErrNoFrame
	}

	if pageIsNotice(doc) {
		return domain.RawFieldMap{}, ErrErrorMarker
	}

	md, err := extractMarkup(doc)
	if err != nil {
		return domain.RawFieldMap{}, err
	}

	fields := i.parser.MapSections(kind, md.Sections)
	setIfEmpty(fields, domain.FieldSerialNumber, serial)
	setIfEmpty(fields, domain.FieldTitle, md.Title)
	setIfEmpty(fields, domain.FieldCaseNumber, md.CaseNumber)
	setIfEmpty(fields, domain.FieldDecisionDate, md.DecisionDate)
	if kind != domain.KindInterpretation {
		setIfEmpty(fields, domain.FieldCourtName, md.CourtName)
	}

	if !fields.Has(i.parser.IdentityField(kind)) {
		return domain.RawFieldMap{}, fmt.Errorf("document page: %w", ErrMissingIdentity)
	}
	return fields, nil
}

func setIfEmpty(m domain.RawFieldMap, field, value string) {
	if value != "" && !m.Has(field) {
		m.Fields[field] = value
	}
}

// isNoticePayload reports whether an API body is only a "no data" notice:
// plain text, or a root element holding text and no child elements.
func isNoticePayload(body []byte) bool {
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, []byte("<")) {
		return isNoticeText(string(body))
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var text strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				return false
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth > 0 {
				text.Write(t)
			}
		}
	}
	return isNoticeText(text.String())
}

// isNoticeText reports whether s is a short notice carrying an error marker.
func isNoticeText(s string) bool {
	s = cleanText(s)
	if s == "" || utf8.RuneCountInString(s) > noticeMaxRunes || sectionHeading.MatchString(s) {
		return false
	}
	for _, m := range errorMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
