package lawapi

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// Selectors tried in order when reading a rendered document page.
var (
	frameSelectors = []string{"iframe[src]", "frame[src]"}
	bodySelectors  = []string{".bo_body_cont", "#contentBody"}
	titleSelectors = []string{"h2", ".tit"}
	blockSelectors = "p, div, li, tr, h2, h3, h4"
)

var (
	// sectionHeading matches 【판시사항】 style headings.
	sectionHeading = regexp.MustCompile(`【\s*([^】]+?)\s*】`)

	// decisionLine matches "대법원 2020. 1. 1. 선고 2019다12345 판결" in a page header.
	decisionLine = regexp.MustCompile(
		`(\p{Hangul}*(?:법원|재판소|지원)|헌재)\s*` +
			`(\d{4}\s*\.\s*\d{1,2}\s*\.\s*\d{1,2}\s*\.?)\s*(?:자\s*)?(?:선고\s*)?` +
			`(\d{2,4}\s*\p{Hangul}{1,3}\s*\d+)`)

	spaces = regexp.MustCompile(`\s+`)
)

// documentPagePath returns the rendered page of a document, relative to the base URL.
func documentPagePath(kind domain.DocumentKind, serial string) (string, error) {
	id := url.QueryEscape(serial)
	switch kind {
	case domain.KindCase:
		return "/LSW/precInfoP.do?precSeq=" + id + "&mode=0", nil
	case domain.KindConstitutional:
		return "/LSW/detcInfoP.do?detcSeq=" + id, nil
	case domain.KindInterpretation:
		return "/LSW/expcInfoP.do?expcSeq=" + id, nil
	default:
		return "", fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, kind)
	}
}

// markupDocument is what a rendered page yields before field mapping.
type markupDocument struct {
	Title    string
	Sections map[string]string

	// Header values, when the page states them in a decision line.
	CourtName    string
	DecisionDate string
	CaseNumber   string
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", domain.ErrMalformedResponse, err)
	}
	return doc, nil
}

// findFrame returns the absolute URL of the page's first content frame.
func findFrame(doc *goquery.Document, pageURL string) (string, bool) {
	for _, sel := range frameSelectors {
		src, ok := doc.Find(sel).First().Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(src))
		if err != nil {
			continue
		}
		base, err := url.Parse(pageURL)
		if err != nil {
			return ref.String(), true
		}
		return base.ResolveReference(ref).String(), true
	}
	return "", false
}

// contentBody returns the element holding the document text, if the page has one.
func contentBody(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, sel := range bodySelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s, true
		}
	}
	return nil, false
}

// pageIsNotice reports whether the page's body container holds nothing but
// a "no data" notice.
func pageIsNotice(doc *goquery.Document) bool {
	container, ok := contentBody(doc)
	if !ok {
		container = doc.Find("body")
	}
	return isNoticeText(container.Text())
}

// extractMarkup reads title, header values and 【】 sections from a page.
func extractMarkup(doc *goquery.Document) (*markupDocument, error) {
	container, ok := contentBody(doc)
	if !ok {
		container = doc.Find("body")
	}

	out := &markupDocument{Sections: make(map[string]string)}
	for _, sel := range titleSelectors {
		if t := cleanText(container.Find(sel).First().Text()); t != "" {
			out.Title = t
			break
		}
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			out.Title = t
			break
		}
	}

	// Keep line structure so section bodies stay readable.
	container.Find("br").ReplaceWithHtml("\n")
	container.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	text := container.Text()

	locs := sectionHeading.FindAllStringSubmatchIndex(text, -1)
	header := text
	if len(locs) > 0 {
		header = text[:locs[0][0]]
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := text[loc[2]:loc[3]]
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		if prev := out.Sections[heading]; prev != "" {
			body = prev + "\n" + body
		}
		out.Sections[heading] = body
	}

	if m := decisionLine.FindStringSubmatch(header); m != nil {
		out.CourtName = m[1]
		out.DecisionDate = spaces.ReplaceAllString(m[2], "")
		out.CaseNumber = spaces.ReplaceAllString(m[3], "")
	}

	if out.Title == "" && len(out.Sections) == 0 {
		return nil, fmt.Errorf("%w: page has no title or sections", domain.ErrMalformedResponse)
	}
	return out, nil
}

func cleanText(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
