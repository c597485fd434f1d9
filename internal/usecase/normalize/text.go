package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanTitle produces the display title: markup stripped, whitespace runs
// collapsed to single spaces, surrounding quotation marks removed. Casing is
// preserved; only the comparison copy folds it.
func CleanTitle(raw string) string {
	return trimQuotes(collapseWhitespace(stripTags(raw)))
}

// TitleKey derives the comparison-only copy of a cleaned title: NFKC-folded
// and lowercased. It is consumed by the deduplicator and never persisted.
func TitleKey(title string) string {
	return strings.ToLower(norm.NFKC.String(title))
}

// stripTags removes anything between angle brackets. Feed titles and
// listing-page headings occasionally carry inline markup; a full HTML parse
// is overkill for a one-line title.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseWhitespace trims and squeezes internal whitespace runs, dropping
// control characters on the way.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// quotePairs lists surrounding quotation marks worth stripping, including
// the French guillemets common in this corpus.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'“', '”'}, // curly double
	{'‘', '’'}, // curly single
	{'«', '»'}, // guillemets
}

func trimQuotes(s string) string {
	runes := []rune(s)
	for {
		if len(runes) < 2 {
			break
		}
		stripped := false
		for _, pair := range quotePairs {
			if runes[0] == pair[0] && runes[len(runes)-1] == pair[1] {
				runes = runes[1 : len(runes)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.TrimSpace(string(runes))
}

// languageNames maps the event index's full language names to ISO 639-1
// codes. Values already in code form pass through lowercased.
var languageNames = map[string]string{
	"english":    "en",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"arabic":     "ar",
	"russian":    "ru",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"turkish":    "tr",
	"polish":     "pl",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"czech":      "cs",
	"greek":      "el",
	"hebrew":     "he",
	"hindi":      "hi",
	"indonesian": "id",
	"ukrainian":  "uk",
	"vietnamese": "vi",
}

// NormalizeLanguage lowercases an ISO code or resolves a full language name
// to its code. Unknown values pass through lowercased.
func NormalizeLanguage(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if code, ok := languageNames[s]; ok {
		return code
	}
	return s
}
