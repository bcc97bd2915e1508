package indexer

import (
	"fmt"
	"strings"
)

var leadingArticles = []string{"the ", "a ", "an "}

// QueryVariants returns the literal queries tried in order for a title:
// raw, dot-substituted, leading article stripped, and both combined.
func QueryVariants(title string) []string {
	raw := strings.Join(strings.Fields(title), " ")
	if raw == "" {
		return nil
	}

	stripped := raw
	lower := strings.ToLower(raw)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) && len(raw) > len(article) {
			stripped = raw[len(article):]
			break
		}
	}

	candidates := []string{
		raw,
		dotted(raw),
		stripped,
		dotted(stripped),
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		variants = append(variants, c)
	}
	return variants
}

func dotted(s string) string {
	return strings.ReplaceAll(s, " ", ".")
}

// episodeSuffix formats the marker appended to generic TV queries
func episodeSuffix(season, episode int) string {
	switch {
	case season > 0 && episode > 0:
		return fmt.Sprintf("S%02dE%02d", season, episode)
	case season > 0:
		return fmt.Sprintf("S%02d", season)
	default:
		return ""
	}
}
