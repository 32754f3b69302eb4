package batch

import (
	"strings"
	"unicode"
)

// MaxTermLength caps a sanitized search term, in runes.
const MaxTermLength = 100

// Sanitize strips a free-text term down to characters that are safe inside a
// quoted remote search string: letters, digits, whitespace, '-' and '.'.
// Whitespace runs collapse to one space and leading '-' is dropped from every
// word so a term can never negate the query.
func Sanitize(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range term {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		w = strings.TrimLeft(w, "-")
		for strings.Contains(w, "--") {
			w = strings.ReplaceAll(w, "--", "-")
		}
		if w != "" {
			kept = append(kept, w)
		}
	}

	out := strings.Join(kept, " ")
	if runes := []rune(out); len(runes) > MaxTermLength {
		out = strings.TrimRight(string(runes[:MaxTermLength]), " ")
	}
	return out
}

// SanitizeOptional is Sanitize for optional input; nil yields "".
func SanitizeOptional(term *string) string {
	if term == nil {
		return ""
	}
	return Sanitize(*term)
}
