package generator

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	invisibleReplacer = strings.NewReplacer(
		"\u2060", "", "\u180E", "",
		"\u2028", "\n", "\u2029", "\n\n",
		"\u200B", "", "\u200C", "",
		"\u200D", "", "\uFEFF", "",
		"\u00AD", "", "\u205F", " ",
		"\u202A", "", "\u202B", "",
		"\u202C", "", "\u202D", "", "\u202E", "",
	)

	// Models often use typographic punctuation around option letters.
	punctuationReplacer = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'",
		"\u201C", `"`, "\u201D", `"`,
		"\uFF09", ")", "\uFF08", "(", "\uFF1A", ":",
	)

	controlCharsRe   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multiNewlinesRe  = regexp.MustCompile(`\n{3,}`)
	headerRe         = regexp.MustCompile(`^#{1,6}\s+`)
	blockquoteRe     = regexp.MustCompile(`^>\s*`)
	boldRe           = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldAltRe        = regexp.MustCompile(`__(.+?)__`)
	italicRe         = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
	strikeRe         = regexp.MustCompile(`~~(.+?)~~`)
	inlineCodeRe     = regexp.MustCompile("`([^`]+)`")
	horizontalRuleRe = regexp.MustCompile(`^[*\-_]{3,}$`)
)

// normalizeCompletion removes invisible and control characters and unifies
// line endings. It is safe for both the template and the JSON form.
func normalizeCompletion(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = invisibleReplacer.Replace(s)
	s = controlCharsRe.ReplaceAllString(s, " ")
	s = multiNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// plainLine strips markdown decoration from one template line and collapses
// its whitespace. Horizontal rules become empty lines.
func plainLine(line string) string {
	line = strings.TrimSpace(line)
	if horizontalRuleRe.MatchString(line) {
		return ""
	}
	line = headerRe.ReplaceAllString(line, "")
	line = blockquoteRe.ReplaceAllString(line, "")
	line = boldRe.ReplaceAllString(line, "$1")
	line = boldAltRe.ReplaceAllString(line, "$1")
	line = italicRe.ReplaceAllString(line, "$1")
	line = strikeRe.ReplaceAllString(line, "$1")
	line = inlineCodeRe.ReplaceAllString(line, "$1")
	line = punctuationReplacer.Replace(line)
	return collapseSpaces(line)
}

func collapseSpaces(line string) string {
	var b strings.Builder
	space := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(b.String())
}
