package relation

import (
	"strings"
	"unicode"
)

// toSnake converts a type name to snake_case using ASCII-aware rules.
// Punctuation collapses into a single underscore so reflected or generic
// type names still produce valid SQL identifiers.
func toSnake(name string) string {
	if name == "" {
		return ""
	}

	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	pendingSep := false
	sep := func() {
		if b.Len() > 0 && !pendingSep {
			b.WriteByte('_')
			pendingSep = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			pendingSep = false
		case unicode.IsLower(r):
			b.WriteRune(r)
			pendingSep = false
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				sep()
			}
			b.WriteRune(r)
			pendingSep = false
		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}
