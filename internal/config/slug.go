package config

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WorkspaceSlug maps a workspace name to a directory-safe slug.
//
// Accents are folded ("Café" -> "cafe"), ASCII letters lowercased, space,
// ':', '/' and '\' become '-', other characters are dropped, runs of '-'
// collapse and leading/trailing '-' are trimmed. An empty result becomes
// "workspace".
func WorkspaceSlug(name string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		var c rune
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			c = r
		case r >= 'A' && r <= 'Z':
			c = r + ('a' - 'A')
		case r == ' ', r == ':', r == '/', r == '\\':
			c = '-'
		default:
			continue
		}
		if c == '-' && strings.HasSuffix(b.String(), "-") {
			continue
		}
		b.WriteRune(c)
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "workspace"
	}
	return slug
}
