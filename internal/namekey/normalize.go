// Package namekey folds a person's display name into a matching key that
// ignores case, spacing, accents and "Last, First" ordering.
package namekey

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the matching key for raw. It never fails; blank input
// yields "", which callers must treat as "no key".
//
//	Normalize("Doe, Jane")  == "jane doe"
//	Normalize(" JANE  doe") == "jane doe"
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = stripDiacritics(s)

	if last, first, ok := strings.Cut(s, ","); ok {
		// Later commas carry no ordering meaning.
		first = strings.ReplaceAll(first, ",", " ")
		s = first + " " + last
	}
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether a and b name the same person. Blank names never match.
func Equal(a, b string) bool {
	ka := Normalize(a)
	return ka != "" && ka == Normalize(b)
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
