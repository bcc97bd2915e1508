package matching

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	folder   = cases.Fold()
)

// articleWords are optional when comparing titles
var articleWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

// Normalize transliterates to ASCII, unifies "&" and "and", case-folds, drops
// punctuation and collapses whitespace
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = folder.String(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Words splits a title into normalized words
func Words(s string) []string {
	return strings.Fields(Normalize(s))
}

// IsArticle reports whether w is an optional article word
func IsArticle(w string) bool {
	_, ok := articleWords[w]
	return ok
}

// ContentWords returns the required words of a title: longer than one character
// and not an article. Titles made only of short or article words keep all words.
func ContentWords(words []string) []string {
	var content []string
	for _, w := range words {
		if len(w) > 1 && !IsArticle(w) {
			content = append(content, w)
		}
	}
	if len(content) == 0 {
		for _, w := range words {
			if !IsArticle(w) {
				content = append(content, w)
			}
		}
	}
	if len(content) == 0 {
		content = append(content, words...)
	}
	return content
}
