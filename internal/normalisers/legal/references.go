package legal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// Reference extraction rules. Both are best-effort scans over free text.
var (
	// articleCite matches "[제]N조[의M][ [제]K항]".
	articleCite = regexp.MustCompile(`제?\s*(\d+)\s*조(?:\s*의\s*(\d+))?(?:\s*제?\s*(\d+)\s*항)?`)

	// caseCite matches "<court> YYYY. M. D. [자] [선고] <caseNo>[, <caseNo>…] [전원합의체] 판결|결정".
	caseCite = regexp.MustCompile(
		`(\p{Hangul}*(?:법원|재판소|지원)|헌재)(?:\([^)]*\))?\s*` +
			`(\d{4})\s*\.\s*(\d{1,2})\s*\.\s*(\d{1,2})\s*\.?\s*(?:자\s*)?(?:선고\s*)?` +
			`((?:\d{2,4}\s*\p{Hangul}{1,3}\s*\d+(?:\([^)]*\))?\s*,?\s*)+)` +
			`(?:전원합의체\s*)?(판결|결정)`)
	caseNumberToken = regexp.MustCompile(`\d{2,4}\s*\p{Hangul}{1,3}\s*\d+`)

	// Noise trimmed from statute names: enumeration markers, separators,
	// parenthesised amendment notes and corner brackets.
	enumPrefix    = regexp.MustCompile(`^(?:\[\d+\]|\(\d+\)|\d+\.|[①-⑳]|[,;/·ㆍ.]|\s)+`)
	parenthetical = regexp.MustCompile(`\([^)]*\)|（[^）]*）`)
	cornerMarks   = strings.NewReplacer("「", "", "」", "", "『", "", "』", "")
)

// ExtractArticles scans text for statute article citations.
// A citation without its own statute name inherits the previous one, so
// "민법 제750조, 제751조" yields two 민법 entries.
func ExtractArticles(text string) []domain.ReferenceArticle {
	text = CleanLine(text)
	if text == "" {
		return nil
	}

	var out []domain.ReferenceArticle
	lawName := ""
	prevEnd := 0

	for _, loc := range articleCite.FindAllStringSubmatchIndex(text, -1) {
		if name := statuteName(text[prevEnd:loc[0]]); name != "" {
			lawName = name
		}
		prevEnd = loc[1]
		if lawName == "" {
			continue
		}

		number := "제" + text[loc[2]:loc[3]] + "조"
		if loc[4] >= 0 {
			number += "의" + text[loc[4]:loc[5]]
		}
		if loc[6] >= 0 {
			number += " 제" + text[loc[6]:loc[7]] + "항"
		}
		out = append(out, domain.ReferenceArticle{LawName: lawName, ArticleNumber: number})
	}
	return out
}

// statuteName reduces the text between two citations to a statute name.
// Returns "" when only separators remain.
func statuteName(between string) string {
	s := parenthetical.ReplaceAllString(between, " ")
	s = cornerMarks.Replace(s)
	s = strings.TrimSpace(enumPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.TrimRight(s, " ,;/·")
	if s == "" || strings.ContainsAny(s[len(s)-1:], "0123456789") {
		return ""
	}
	switch s {
	case "및", "또는", "내지", "등", "와", "과", "같은 법", "같은법", "동법":
		return ""
	}
	return s
}

// ExtractCases scans text for prior-decision citations. One entry is
// emitted per case number, with the decision date normalised.
func ExtractCases(text string) []domain.ReferenceCase {
	text = CleanLine(text)
	if text == "" {
		return nil
	}

	var out []domain.ReferenceCase
	for _, m := range caseCite.FindAllStringSubmatch(text, -1) {
		court := m[1]
		var date *time.Time
		y, _ := strconv.Atoi(m[2])
		mo, _ := strconv.Atoi(m[3])
		d, _ := strconv.Atoi(m[4])
		if t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC); t.Month() == time.Month(mo) && t.Day() == d {
			date = &t
		}

		for _, num := range caseNumberToken.FindAllString(m[5], -1) {
			out = append(out, domain.ReferenceCase{
				CaseNumber:   anyWhitespace.ReplaceAllString(num, ""),
				CourtName:    court,
				DecisionDate: date,
			})
		}
	}
	return out
}
