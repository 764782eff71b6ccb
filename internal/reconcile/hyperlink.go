package reconcile

import (
	"regexp"
	"strings"
)

// DefaultLinkLabel is shown when a preserved link has no parsable label.
const DefaultLinkLabel = "Link"

// hyperlinkRe captures the second argument of =HYPERLINK("url", "label").
var hyperlinkRe = regexp.MustCompile(`(?i)^\s*=?\s*HYPERLINK\s*\(\s*"(?:[^"]|"")*"\s*[,;]\s*"((?:[^"]|"")*)"\s*\)\s*$`)

// LinkLabel extracts the display label of a HYPERLINK formula, falling back
// to fallback (or DefaultLinkLabel) when the formula has none.
func LinkLabel(formula, fallback string) string {
	if m := hyperlinkRe.FindStringSubmatch(formula); m != nil {
		if label := strings.ReplaceAll(m[1], `""`, `"`); strings.TrimSpace(label) != "" {
			return label
		}
	}
	if fallback != "" {
		return fallback
	}
	return DefaultLinkLabel
}

// IsHyperlink reports whether formula is a HYPERLINK call.
func IsHyperlink(formula string) bool {
	f := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(formula), "=")))
	return strings.HasPrefix(f, "HYPERLINK(")
}
