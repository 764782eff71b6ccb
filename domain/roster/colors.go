package roster

import "strings"

// NormalizeColor upper-cases a fill and prefixes "#". ARGB values
// ("FFRRGGBB") drop their alpha byte. Blank input yields "".
func NormalizeColor(c string) string {
	c = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c), "#")))
	if c == "" {
		return ""
	}
	if len(c) == 8 {
		c = c[2:]
	}
	return "#" + c
}

// ColorSet builds a lookup of normalized colors.
func ColorSet(colors []string) map[string]bool {
	out := make(map[string]bool, len(colors))
	for _, c := range colors {
		if n := NormalizeColor(c); n != "" {
			out[n] = true
		}
	}
	return out
}
