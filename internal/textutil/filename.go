package textutil

import (
	"strings"
	"unicode"
)

// maxSlugRunes caps generated slugs so output filenames stay readable.
const maxSlugRunes = 50

// SafeFilename converts a title into a filesystem-safe slug. Characters
// outside letters, digits, and underscores are dropped; whitespace and hyphen
// runs collapse to a single hyphen; the result is lowercased and capped at 50
// runes. Returns "untitled" when nothing usable remains.
func SafeFilename(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), "-")
	if runes := []rune(slug); len(runes) > maxSlugRunes {
		slug = string(runes[:maxSlugRunes])
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
