package legal

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// Pre-compiled regular expressions for text cleaning.
var (
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockClose    = regexp.MustCompile(`(?i)</(p|div|li|tr|h[1-6])>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\f\v]+`)
	anyWhitespace = regexp.MustCompile(`\s+`)
)

// CleanLine cleans a single-line field: tags and entities are decoded,
// control characters removed, and every whitespace run becomes one space.
func CleanLine(s string) string {
	s = decode(s)
	return strings.TrimSpace(anyWhitespace.ReplaceAllString(s, " "))
}

// CleanBlock cleans a long-text field. Whitespace inside a line collapses
// to one space; line breaks are kept as single newlines.
func CleanBlock(s string) string {
	s = decode(s)
	s = multiSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// decode strips markup, decodes entities and drops control characters.
// Newlines survive so CleanBlock can keep paragraph structure.
func decode(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = brTags.ReplaceAllString(s, "\n")
	s = blockClose.ReplaceAllString(s, "\n")
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case r == '\u00a0' || r == '\u3000':
			return ' '
		case unicode.IsControl(r), r == '\ufeff', r == '\u200b':
			return -1
		}
		return r
	}, s)
}
